// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Mailbox wire layout & runtime tunables
//
// Purpose:
//   - Defines the bit-exact offsets of the shared mailbox image.
//   - Defines polling and servicing tunables shared by both sides.
//
// Notes:
//   - Every offset is relative to the first byte of the shared region.
//   - Layout is little-endian and packed; no field relies on Go struct layout.
//   - The image package asserts these values at init time.
//
// ⚠️ No runtime logic here. All values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Interface Header ──────────────────────────────

const (
	// InterfaceVersion is stamped by the master at the start of every session.
	InterfaceVersion = 1

	// ImageSize is the total size of the shared mailbox image in bytes.
	// Peers that were not rebuilt against this layout rely on it exactly.
	ImageSize = 4096

	// CacheLine is the alignment unit used to separate the two control lines.
	CacheLine = 64

	// ReservedWords is the number of zeroed words following the status words.
	ReservedWords = 6
)

// ───────────────────────────── Payload Geometry ──────────────────────────────

const (
	// PayloadSize is the fixed size of every message record.
	PayloadSize = 64

	// PayloadDataWords is the number of opaque u32 body words in a payload.
	PayloadDataWords = 12

	// QueueSlots is the capacity of each lo-pri ring. One slot is always
	// left empty so a full ring holds QueueSlots-1 payloads.
	QueueSlots = 15

	// QueueCount is the number of lo-pri rings in the image.
	QueueCount = 4

	// QueueBytes is the size of one ring's slot array.
	QueueBytes = QueueSlots * PayloadSize
)

// ───────────────────────── Cache Line 0: Header + M2S ────────────────────────

const (
	OffInterfaceSize    = 0x000
	OffInterfaceVersion = 0x004
	OffMasterStatus     = 0x008
	OffSlaveStatus      = 0x00C
	OffReserved         = 0x010 // ReservedWords × u32

	OffHiPriM2SReqReady = 0x028 // raised by master
	OffHiPriM2SRspReady = 0x02C // raised by slave
)

// ──────────────────────── Cache Line 1: S2M + Indices ────────────────────────

const (
	OffHiPriS2MReqReady = 0x040 // raised by slave
	OffHiPriS2MRspReady = 0x044 // raised by master

	// OffQueueIndices is the first (head, tail) pair. Pairs follow in queue
	// order M2SReq, M2SRsp, S2MReq, S2MRsp, 8 bytes each.
	OffQueueIndices = 0x048

	// QueueIndexStride is the distance between two (head, tail) pairs.
	QueueIndexStride = 8
)

// ───────────────────────────── Payload Regions ──────────────────────────────

const (
	OffHiPriM2SData = 0x080
	OffHiPriS2MData = 0x0C0

	// OffQueueSlots is the first ring's slot array; rings follow in queue order.
	OffQueueSlots = 0x100

	// ControlBytes is the size of the two control cache lines.
	ControlBytes = 2 * CacheLine
)

// ───────────────────────────── Driver Tunables ──────────────────────────────

const (
	// DefaultLowPriorityBudget bounds lo-pri entries serviced per queue per tick.
	// A full ring drains in one tick.
	DefaultLowPriorityBudget = QueueSlots - 1

	// DefaultSpinBudget sets failed polls before the poll loop relaxes the CPU.
	DefaultSpinBudget = 224

	// DefaultHotWindowMs keeps the poll loop spinning after the last activity.
	DefaultHotWindowMs = 5000
)
