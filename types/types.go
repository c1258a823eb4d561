package types

import (
	"encoding/binary"

	"mailbox/constants"

	"golang.org/x/crypto/sha3"
)

// ============================================================================
// MESSAGE PAYLOAD - FIXED 64-BYTE RECORD
// ============================================================================

// Payload is the unit carried by both the hi-pri channels and the lo-pri
// rings. It is always copied by value; nothing outside this process ever
// holds a reference to it.
//
// Wire layout (little-endian, 64 bytes):
//
//	0x00 ServiceID      u32
//	0x04 CommandID      u32
//	0x08 SenderTag lo   u32
//	0x0C SenderTag hi   u32
//	0x10 Data[0..11]    12 × u32
type Payload struct {
	ServiceID uint32
	CommandID uint32
	SenderTag uint64
	Data      [constants.PayloadDataWords]uint32
}

// ============================================================================
// WIRE CODEC
// ============================================================================

// Encode writes p into dst, which must hold at least PayloadSize bytes.
func (p *Payload) Encode(dst []byte) {
	_ = dst[constants.PayloadSize-1] // bounds check hint
	binary.LittleEndian.PutUint32(dst[0:], p.ServiceID)
	binary.LittleEndian.PutUint32(dst[4:], p.CommandID)
	binary.LittleEndian.PutUint32(dst[8:], uint32(p.SenderTag))
	binary.LittleEndian.PutUint32(dst[12:], uint32(p.SenderTag>>32))
	for i, w := range p.Data {
		binary.LittleEndian.PutUint32(dst[16+4*i:], w)
	}
}

// Decode reads a payload from src, which must hold at least PayloadSize bytes.
func Decode(src []byte) Payload {
	_ = src[constants.PayloadSize-1]
	var p Payload
	p.ServiceID = binary.LittleEndian.Uint32(src[0:])
	p.CommandID = binary.LittleEndian.Uint32(src[4:])
	lo := binary.LittleEndian.Uint32(src[8:])
	hi := binary.LittleEndian.Uint32(src[12:])
	p.SenderTag = uint64(hi)<<32 | uint64(lo)
	for i := range p.Data {
		p.Data[i] = binary.LittleEndian.Uint32(src[16+4*i:])
	}
	return p
}

// Bytes returns the 64-byte wire form of p.
func (p *Payload) Bytes() [constants.PayloadSize]byte {
	var b [constants.PayloadSize]byte
	p.Encode(b[:])
	return b
}

// Digest returns the SHA3-256 of the wire form. Journals store it so two
// recordings of the same message can be matched without the body.
func (p *Payload) Digest() [32]byte {
	b := p.Bytes()
	return sha3.Sum256(b[:])
}

// IsZero reports whether p is the zero payload.
func (p Payload) IsZero() bool {
	return p == Payload{}
}
