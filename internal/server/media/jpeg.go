package media

import "io"

// jpegReader concatenates bytes from r into frames delimited by the JPEG
// end-of-image marker 0xFF 0xD9 (spec.md §4.G).
type jpegReader struct {
	r        io.Reader
	leftover []byte
}

func newJPEGReader(r io.Reader) *jpegReader {
	return &jpegReader{r: r}
}

// Next returns the next complete JPEG frame, including its trailing EOI
// marker. When the underlying reader fails it returns that error — io.EOF
// when the stream ends, whether between frames or inside an unfinished
// image — and never a partial frame, per spec.md §7 ("JPEG reader
// returns error on EOF before EOI marker").
func (j *jpegReader) Next() ([]byte, error) {
	accP := getBuffer()
	defer putBuffer(accP)
	acc := append(*accP, j.leftover...)
	j.leftover = nil
	searchFrom := 0

	chunk := make([]byte, 4096)
	for {
		if i := findEOI(acc, searchFrom); i >= 0 {
			frame := make([]byte, i+2)
			copy(frame, acc[:i+2])
			if rest := acc[i+2:]; len(rest) > 0 {
				j.leftover = append([]byte(nil), rest...)
			}
			*accP = acc
			return frame, nil
		}
		if len(acc) > 0 {
			searchFrom = len(acc) - 1
		}

		n, err := j.r.Read(chunk)
		if n > 0 {
			acc = append(acc, chunk[:n]...)
		}
		if err != nil {
			*accP = acc
			return nil, err
		}
	}
}

func findEOI(b []byte, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i+1 < len(b); i++ {
		if b[i] == 0xFF && b[i+1] == 0xD9 {
			return i
		}
	}
	return -1
}
