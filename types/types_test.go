package types

import (
	"bytes"
	"testing"

	"mailbox/constants"
)

// samplePayload builds a payload with every field populated
func samplePayload() Payload {
	p := Payload{ServiceID: 3, CommandID: 7, SenderTag: 0x1122334455667788}
	for i := range p.Data {
		p.Data[i] = 0xA0000000 | uint32(i)
	}
	return p
}

func TestPayloadWireOffsets(t *testing.T) {
	p := samplePayload()
	b := p.Bytes()

	want := []byte{
		0x03, 0x00, 0x00, 0x00, // service_id
		0x07, 0x00, 0x00, 0x00, // command_id
		0x88, 0x77, 0x66, 0x55, // sender_tag lo
		0x44, 0x33, 0x22, 0x11, // sender_tag hi
		0x00, 0x00, 0x00, 0xA0, // data[0]
	}
	if !bytes.Equal(b[:len(want)], want) {
		t.Fatalf("wire prefix = % x, want % x", b[:len(want)], want)
	}

	last := b[constants.PayloadSize-4:]
	if !bytes.Equal(last, []byte{0x0B, 0x00, 0x00, 0xA0}) {
		t.Fatalf("data[11] = % x", last)
	}
}

func TestPayloadDecodeInverse(t *testing.T) {
	p := samplePayload()
	var buf [constants.PayloadSize]byte
	p.Encode(buf[:])

	if got := Decode(buf[:]); got != p {
		t.Fatalf("Decode = %+v, want %+v", got, p)
	}
}

func TestPayloadDigest(t *testing.T) {
	a := samplePayload()
	b := samplePayload()
	if a.Digest() != b.Digest() {
		t.Fatal("equal payloads must share a digest")
	}

	b.Data[5]++
	if a.Digest() == b.Digest() {
		t.Fatal("digest must change with the body")
	}
}

func TestPayloadIsZero(t *testing.T) {
	var p Payload
	if !p.IsZero() {
		t.Fatal("zero payload not reported as zero")
	}
	p.SenderTag = 1
	if p.IsZero() {
		t.Fatal("non-zero payload reported as zero")
	}
	// Callable on a returned value, as read straight from an image.
	if !Decode(make([]byte, 64)).IsZero() {
		t.Fatal("decoded zero record not reported as zero")
	}
}

func TestEncodePanicsOnShortBuffer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Encode into a short buffer should panic")
		}
	}()
	p := samplePayload()
	p.Encode(make([]byte, constants.PayloadSize-1))
}
