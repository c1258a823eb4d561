// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: layout.go — Roles, directions, queues and field ownership
//
// Purpose:
//   - Names the two roles and maps every control word to its single writer.
//   - Resolves hi-pri directions and lo-pri queues to wire offsets.
//
// Notes:
//   - The ownership table covers the two control cache lines only. Payload
//     regions change hands through the hi-pri handshake or belong to the
//     producer of a ring.
// ─────────────────────────────────────────────────────────────────────────────

package image

import (
	"encoding/binary"
	"fmt"

	"mailbox/constants"
)

// Side identifies one of the two fixed roles of a session.
type Side uint8

const (
	Master Side = iota
	Slave
)

// Peer returns the opposite role.
func (s Side) Peer() Side { return s ^ 1 }

func (s Side) String() string {
	if s == Master {
		return "master"
	}
	return "slave"
}

// ───────────────────────────── Hi-pri Directions ─────────────────────────────

// Direction selects one of the two hi-pri channels.
type Direction uint8

const (
	M2S Direction = iota // master sends requests, slave responds
	S2M                  // slave sends requests, master responds
)

// Requester returns the side that raises req_ready for d.
func (d Direction) Requester() Side { return Side(d) }

// Outbound returns the direction in which side s is the requester.
func Outbound(s Side) Direction { return Direction(s) }

// Inbound returns the direction in which side s is the responder.
func Inbound(s Side) Direction { return Direction(s.Peer()) }

func (d Direction) ReqReadyOff() uint32 {
	if d == M2S {
		return constants.OffHiPriM2SReqReady
	}
	return constants.OffHiPriS2MReqReady
}

func (d Direction) RspReadyOff() uint32 {
	if d == M2S {
		return constants.OffHiPriM2SRspReady
	}
	return constants.OffHiPriS2MRspReady
}

func (d Direction) DataOff() uint32 {
	if d == M2S {
		return constants.OffHiPriM2SData
	}
	return constants.OffHiPriS2MData
}

func (d Direction) String() string {
	if d == M2S {
		return "m2s"
	}
	return "s2m"
}

// ───────────────────────────── Lo-pri Queues ─────────────────────────────────

// QueueID selects one of the four lo-pri rings, in wire order.
type QueueID uint8

const (
	M2SReq QueueID = iota
	M2SRsp
	S2MReq
	S2MRsp
)

// Queues lists every ring in wire order.
var Queues = [constants.QueueCount]QueueID{M2SReq, M2SRsp, S2MReq, S2MRsp}

// Producer returns the side that pushes into q and owns its head index.
func (q QueueID) Producer() Side {
	if q <= M2SRsp {
		return Master
	}
	return Slave
}

// Consumer returns the side that pops from q and owns its tail index.
func (q QueueID) Consumer() Side { return q.Producer().Peer() }

func (q QueueID) HeadOff() uint32 {
	return constants.OffQueueIndices + uint32(q)*constants.QueueIndexStride
}

func (q QueueID) TailOff() uint32 { return q.HeadOff() + 4 }

// SlotOff returns the offset of slot i of q.
func (q QueueID) SlotOff(i uint32) uint32 {
	return constants.OffQueueSlots + uint32(q)*constants.QueueBytes + i*constants.PayloadSize
}

func (q QueueID) String() string {
	switch q {
	case M2SReq:
		return "m2s_req"
	case M2SRsp:
		return "m2s_rsp"
	case S2MReq:
		return "s2m_req"
	case S2MRsp:
		return "s2m_rsp"
	}
	return fmt.Sprintf("queue(%d)", uint8(q))
}

// RequestQueue returns the ring side s pushes requests into.
func RequestQueue(s Side) QueueID {
	if s == Master {
		return M2SReq
	}
	return S2MReq
}

// ResponseQueue returns the ring side s pushes responses into.
func ResponseQueue(s Side) QueueID {
	if s == Master {
		return M2SRsp
	}
	return S2MRsp
}

// ───────────────────────────── Ownership Table ───────────────────────────────

const controlWords = constants.ControlBytes / 4

const (
	ownNone int8 = iota
	ownMaster
	ownSlave
)

// owners maps each control word to its writer. Padding words have no owner.
var owners [controlWords]int8

func own(off uint32, s Side) {
	if s == Master {
		owners[off/4] = ownMaster
	} else {
		owners[off/4] = ownSlave
	}
}

func init() {
	if binary.NativeEndian.Uint16([]byte{1, 0}) != 1 {
		panic("image: mailbox words are little-endian; big-endian hosts are not supported")
	}
	checkLayout()

	own(constants.OffInterfaceSize, Master)
	own(constants.OffInterfaceVersion, Master)
	own(constants.OffMasterStatus, Master)
	own(constants.OffSlaveStatus, Slave)
	for i := uint32(0); i < constants.ReservedWords; i++ {
		own(constants.OffReserved+4*i, Master)
	}
	for _, d := range []Direction{M2S, S2M} {
		own(d.ReqReadyOff(), d.Requester())
		own(d.RspReadyOff(), d.Requester().Peer())
	}
	for _, q := range Queues {
		own(q.HeadOff(), q.Producer())
		own(q.TailOff(), q.Consumer())
	}
}

// OwnerOf returns the writer of the control word at off. ok is false for
// padding and for offsets outside the control lines.
func OwnerOf(off uint32) (s Side, ok bool) {
	if off%4 != 0 || off >= constants.ControlBytes {
		return 0, false
	}
	switch owners[off/4] {
	case ownMaster:
		return Master, true
	case ownSlave:
		return Slave, true
	}
	return 0, false
}

// ───────────────────────────── Layout Assertions ─────────────────────────────

// The slot arrays must end exactly at ImageSize.
var _ = [1]struct{}{}[constants.ImageSize-(constants.OffQueueSlots+constants.QueueCount*constants.QueueBytes)]

func checkLayout() {
	type span struct {
		name     string
		off, end uint32
	}
	spans := []span{
		{"interface_size", constants.OffInterfaceSize, constants.OffInterfaceSize + 4},
		{"interface_version", constants.OffInterfaceVersion, constants.OffInterfaceVersion + 4},
		{"master_status", constants.OffMasterStatus, constants.OffMasterStatus + 4},
		{"slave_status", constants.OffSlaveStatus, constants.OffSlaveStatus + 4},
		{"reserved", constants.OffReserved, constants.OffReserved + 4*constants.ReservedWords},
		{"m2s_req_ready", constants.OffHiPriM2SReqReady, constants.OffHiPriM2SReqReady + 4},
		{"m2s_rsp_ready", constants.OffHiPriM2SRspReady, constants.OffHiPriM2SRspReady + 4},
		{"s2m_req_ready", constants.OffHiPriS2MReqReady, constants.OffHiPriS2MReqReady + 4},
		{"s2m_rsp_ready", constants.OffHiPriS2MRspReady, constants.OffHiPriS2MRspReady + 4},
		{"queue_indices", constants.OffQueueIndices, constants.OffQueueIndices + constants.QueueCount*constants.QueueIndexStride},
		{"m2s_data", constants.OffHiPriM2SData, constants.OffHiPriM2SData + constants.PayloadSize},
		{"s2m_data", constants.OffHiPriS2MData, constants.OffHiPriS2MData + constants.PayloadSize},
		{"queue_slots", constants.OffQueueSlots, constants.OffQueueSlots + constants.QueueCount*constants.QueueBytes},
	}
	for i, s := range spans {
		if s.end > constants.ImageSize {
			panic("image: field " + s.name + " runs past the image")
		}
		if i > 0 && s.off < spans[i-1].end {
			panic("image: field " + s.name + " overlaps " + spans[i-1].name)
		}
	}
	if constants.OffHiPriM2SReqReady/constants.CacheLine != 0 || constants.OffHiPriS2MReqReady/constants.CacheLine != 1 {
		panic("image: hi-pri flags must sit on separate cache lines")
	}
	if constants.OffQueueIndices+constants.QueueCount*constants.QueueIndexStride > constants.ControlBytes {
		panic("image: queue indices must fit in the control lines")
	}
}
