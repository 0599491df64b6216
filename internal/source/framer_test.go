package source

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"
)

func encodePacket(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(frameMagic[:])
	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, uint16(len(payload)))
	buf.Write(lenBytes)
	buf.Write(payload)
	return buf.Bytes()
}

func TestFramerSinglePacket(t *testing.T) {
	f := NewFramer()
	payload := []byte{0xAA, 0xBB, 0xCC}
	out := f.Feed(encodePacket(payload))

	if len(out) != 1 || !bytes.Equal(out[0], payload) {
		t.Fatalf("got %v, want [%v]", out, payload)
	}
}

func TestFramerFromSpecExample(t *testing.T) {
	f := NewFramer()
	stream := []byte{0xFF, 0xA0, 0xFF, 0xA1, 0x03, 0x00, 0xAA, 0xBB, 0xCC}
	out := f.Feed(stream)

	want := [][]byte{{0xAA, 0xBB, 0xCC}}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestFramerSkipsGarbageAroundPackets(t *testing.T) {
	f := NewFramer()
	var stream []byte
	stream = append(stream, []byte{0x00, 0x11, 0x22, 0x33, 0x44}...) // garbage, no magic
	stream = append(stream, encodePacket([]byte{1, 2, 3, 4})...)
	stream = append(stream, []byte{0x55, 0x66}...) // garbage between packets
	stream = append(stream, encodePacket([]byte{5, 6})...)

	out := f.Feed(stream)
	want := [][]byte{{1, 2, 3, 4}, {5, 6}}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestFramerAcrossMultipleFeeds(t *testing.T) {
	f := NewFramer()
	packet := encodePacket([]byte{9, 8, 7, 6, 5})

	var out [][]byte
	for _, b := range packet {
		out = append(out, f.Feed([]byte{b})...)
	}

	want := [][]byte{{9, 8, 7, 6, 5}}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestFramerHandlesManyPacketsInOrder(t *testing.T) {
	f := NewFramer()
	var stream []byte
	var want [][]byte
	for i := 0; i < 20; i++ {
		payload := bytes.Repeat([]byte{byte(i)}, i+1)
		want = append(want, payload)
		stream = append(stream, encodePacket(payload)...)
		stream = append(stream, byte(i)) // a stray byte of noise between frames
	}

	out := f.Feed(stream)
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("payloads out of order or missing:\ngot  %v\nwant %v", out, want)
	}
}
