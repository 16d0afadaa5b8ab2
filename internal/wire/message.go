// Package wire implements the line-delimited JSON framing and tagged
// message schema described in spec.md §3-4.A: one JSON object per line,
// a monotonically-increasing message_id assigned only by the originator,
// and a closed set of "message_type"-tagged variants each carrying their
// own fields.
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Message is the envelope every variant travels in.
type Message struct {
	MessageID int64
	Inner     Inner
}

// New wraps inner with the given message id.
func New(id int64, inner Inner) Message {
	return Message{MessageID: id, Inner: inner}
}

// ExpectsForwardedReply reports whether the router must remember this
// message's id in the reply table when forwarding it (spec.md §4.E step 4).
func (m Message) ExpectsForwardedReply() bool {
	info, ok := variantTable[m.Inner.Tag()]
	return ok && info.expectsReply
}

// ReplyTo returns the id this message replies to, if any.
func (m Message) ReplyTo() (int64, bool) {
	if r, ok := m.Inner.(Replying); ok {
		return r.GetReplyTo(), true
	}
	return 0, false
}

// DestinationMachine returns the addressed machine name, if any.
func (m Message) DestinationMachine() (string, bool) {
	if a, ok := m.Inner.(Addressed); ok {
		return a.GetDestination(), true
	}
	return "", false
}

// Route returns the static (source, destination) role pair for this
// message's variant.
func (m Message) Route() Route {
	return variantTable[m.Inner.Tag()].route
}

// MarshalJSON serializes message_id, message_type, then the variant's own
// fields into a single flat JSON object.
func (m Message) MarshalJSON() ([]byte, error) {
	innerJSON, err := json.Marshal(m.Inner)
	if err != nil {
		return nil, fmt.Errorf("marshal %s fields: %w", m.Inner.Tag(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(innerJSON, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	idJSON, err := json.Marshal(m.MessageID)
	if err != nil {
		return nil, err
	}
	tagJSON, err := json.Marshal(m.Inner.Tag())
	if err != nil {
		return nil, err
	}
	fields["message_id"] = idJSON
	fields["message_type"] = tagJSON
	return json.Marshal(fields)
}

// UnmarshalJSON implements the two-phase decode from spec.md §4.A: pull
// message_id (defaulting to -1 when absent, per the media connection's
// stream_descriptor) and message_type, then dispatch to the variant's
// strict decoder.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id := int64(-1)
	if idRaw, ok := raw["message_id"]; ok {
		if err := json.Unmarshal(idRaw, &id); err != nil {
			return fmt.Errorf("message_id: not an integer: %w", err)
		}
	}
	delete(raw, "message_id")

	tagRaw, ok := raw["message_type"]
	if !ok {
		return fmt.Errorf("missing field %q", "message_type")
	}
	var tag string
	if err := json.Unmarshal(tagRaw, &tag); err != nil {
		return fmt.Errorf("message_type: not a string: %w", err)
	}
	delete(raw, "message_type")

	info, ok := variantTable[tag]
	if !ok {
		return fmt.Errorf("unknown variant %q", tag)
	}
	inner, err := info.decode(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", tag, err)
	}

	m.MessageID = id
	m.Inner = inner
	return nil
}

// Reader decodes newline-delimited Messages from a stream. Zero-length
// reads (EOF) surface as io.EOF, per spec.md §4.A.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadMessage blocks until a full line has been read and parsed.
func (r *Reader) ReadMessage() (Message, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return Message{}, io.EOF
		}
		if err != io.EOF {
			return Message{}, err
		}
	}
	var msg Message
	if decErr := json.Unmarshal(line, &msg); decErr != nil {
		return Message{}, decErr
	}
	return msg, nil
}

// Writer serializes Messages as newline-delimited JSON. A single Writer
// must not be used concurrently; per spec.md §4.H each connection has
// exactly one writer goroutine.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage serializes msg and appends a newline in one Write call so
// concurrent writers (there should be none, but belt-and-suspenders) never
// interleave a partial frame.
func (w *Writer) WriteMessage(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.w.Write(data)
	return err
}
