package source

import "encoding/binary"

// frameMagic is the 4-byte header that precedes every serial frame.
var frameMagic = [4]byte{0xFF, 0xA0, 0xFF, 0xA1}

// Framer implements the USB-CDC wire protocol from spec.md §4.2: a 4-byte
// magic, a little-endian u16 payload length, then that many JPEG bytes. It
// maintains a small rolling window to find the magic anywhere in an
// arbitrary byte stream, then collects exactly `length` payload bytes
// before emitting them and resetting.
//
// Framer is not safe for concurrent use; one instance per serial
// connection.
type Framer struct {
	window     []byte // rolling bytes not yet classified as header or payload
	collecting bool
	payloadLen int
	payload    []byte
}

// NewFramer returns a Framer ready to scan a fresh byte stream.
func NewFramer() *Framer {
	return &Framer{window: make([]byte, 0, 6)}
}

// Feed appends b to the framer's state and returns every complete payload
// that became available as a result, in order.
func (f *Framer) Feed(b []byte) [][]byte {
	var out [][]byte

	for _, c := range b {
		if f.collecting {
			f.payload = append(f.payload, c)
			if len(f.payload) == f.payloadLen {
				done := f.payload
				f.payload = nil
				f.collecting = false
				out = append(out, done)
			}
			continue
		}

		f.window = append(f.window, c)
		if len(f.window) < 6 {
			continue
		}
		if len(f.window) > 6 {
			f.window = f.window[len(f.window)-6:]
		}

		if f.window[0] == frameMagic[0] && f.window[1] == frameMagic[1] &&
			f.window[2] == frameMagic[2] && f.window[3] == frameMagic[3] {
			length := int(binary.LittleEndian.Uint16(f.window[4:6]))
			f.window = f.window[:0]
			if length == 0 {
				out = append(out, []byte{})
				continue
			}
			f.collecting = true
			f.payloadLen = length
			f.payload = make([]byte, 0, length)
		}
	}

	return out
}
