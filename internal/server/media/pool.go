package media

import "sync"

// FrameBufferSize is the pooled scratch-buffer capacity for JPEG frame
// accumulation (spec.md §4.G: "16 KiB for JPEG").
const FrameBufferSize = 16 * 1024

var bufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 0, FrameBufferSize)
		return &buf
	},
}

func getBuffer() *[]byte {
	buf := bufPool.Get().(*[]byte)
	*buf = (*buf)[:0]
	return buf
}

func putBuffer(buf *[]byte) {
	bufPool.Put(buf)
}
