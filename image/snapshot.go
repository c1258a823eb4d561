package image

import (
	"mailbox/constants"

	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/crypto/sha3"
)

// QueueSnapshot is the observed state of one lo-pri ring.
type QueueSnapshot struct {
	Name string `json:"name"`
	Head uint32 `json:"head"`
	Tail uint32 `json:"tail"`
	Len  uint32 `json:"len"`
}

// Snapshot is a point-in-time copy of every control word. Words are read
// one at a time, so a snapshot taken while both sides drive is not a
// consistent cut; it is a diagnostic.
type Snapshot struct {
	InterfaceSize    uint32           `json:"interface_size"`
	InterfaceVersion uint32           `json:"interface_version"`
	MasterStatus     string           `json:"master_status"`
	SlaveStatus      string           `json:"slave_status"`
	M2SReqReady      uint32           `json:"m2s_req_ready"`
	M2SRspReady      uint32           `json:"m2s_rsp_ready"`
	S2MReqReady      uint32           `json:"s2m_req_ready"`
	S2MRspReady      uint32           `json:"s2m_rsp_ready"`
	Queues           [4]QueueSnapshot `json:"queues"`
}

// Snapshot captures the control lines.
func (img *Image) Snapshot() Snapshot {
	s := Snapshot{
		MasterStatus: img.MasterStatus().String(),
		SlaveStatus:  img.SlaveStatus().String(),
		M2SReqReady:  img.Load(M2S.ReqReadyOff()),
		M2SRspReady:  img.Load(M2S.RspReadyOff()),
		S2MReqReady:  img.Load(S2M.ReqReadyOff()),
		S2MRspReady:  img.Load(S2M.RspReadyOff()),
	}
	s.InterfaceSize, s.InterfaceVersion = img.Header()
	for i, q := range Queues {
		head, tail := img.Load(q.HeadOff()), img.Load(q.TailOff())
		s.Queues[i] = QueueSnapshot{
			Name: q.String(),
			Head: head,
			Tail: tail,
			Len:  (head + constants.QueueSlots - tail) % constants.QueueSlots,
		}
	}
	return s
}

// JSON renders the snapshot.
func (s Snapshot) JSON() ([]byte, error) {
	return sonnet.Marshal(s)
}

// Fingerprint hashes the whole image with SHA3-256. Payload regions are
// written with plain stores, so call it only while neither side drives.
func (img *Image) Fingerprint() [32]byte {
	var buf [constants.ImageSize]byte
	for off := uint32(0); off < constants.ImageSize; off += 4 {
		w := img.Load(off)
		buf[off], buf[off+1], buf[off+2], buf[off+3] = byte(w), byte(w>>8), byte(w>>16), byte(w>>24)
	}
	return sha3.Sum256(buf[:])
}
