// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: image.go — Shared mailbox image and per-side views
//
// Purpose:
//   - Wraps the 4096-byte shared region (heap buffer or mmapped file).
//   - Gives each side a View that only writes words that side owns.
//
// Notes:
//   - Control words are accessed with sync/atomic. A store publishes every
//     plain write made before it; a load orders every plain read after it.
//     That is the fence pair the handshake relies on.
//   - No Go pointer into the region is retained; addresses are computed
//     from offsets on every access.
//
// ⚠️ A View must be used by a single goroutine: the one driving that side.
// ─────────────────────────────────────────────────────────────────────────────

package image

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"mailbox/constants"
	"mailbox/types"
)

var (
	// ErrShortRegion is returned when the region cannot hold an image.
	ErrShortRegion = errors.New("image: region smaller than interface size")
	// ErrMisaligned is returned when the region is not word aligned.
	ErrMisaligned = errors.New("image: region not 4-byte aligned")
	// ErrBadHeader is returned when size/version do not match this build.
	ErrBadHeader = errors.New("image: interface header mismatch")
	// ErrNotOwner is returned when a side attempts a master-only operation.
	ErrNotOwner = errors.New("image: operation reserved to the other side")
)

// WriteObserver is notified of every write made through a View. off is the
// word offset for control stores and the record offset for payload writes.
// Boot reports WholeImage instead of one event per word.
type WriteObserver func(side Side, off uint32)

// WholeImage is the observer offset for a boot wipe.
const WholeImage = constants.ImageSize

// Image is the shared mailbox record. It does not own the memory behind it.
type Image struct {
	mem      []byte
	observer WriteObserver
}

// New allocates a zeroed heap-backed image, used when both sides live in
// the same process.
func New() *Image {
	return &Image{mem: make([]byte, constants.ImageSize)}
}

// Wrap builds an image over an existing region, typically an mmapped file.
func Wrap(mem []byte) (*Image, error) {
	if len(mem) < constants.ImageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortRegion, len(mem))
	}
	if uintptr(unsafe.Pointer(&mem[0]))%4 != 0 {
		return nil, ErrMisaligned
	}
	return &Image{mem: mem[:constants.ImageSize:constants.ImageSize]}, nil
}

// Bytes exposes the backing region.
func (img *Image) Bytes() []byte { return img.mem }

// SetObserver installs fn as the write observer. It must be called before
// any side starts driving.
func (img *Image) SetObserver(fn WriteObserver) { img.observer = fn }

// View returns the accessor for side s.
func (img *Image) View(s Side) *View { return &View{img: img, side: s} }

//go:nosplit
//go:inline
func (img *Image) word(off uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&img.mem[off]))
}

// Load reads the control word at off.
func (img *Image) Load(off uint32) uint32 {
	return atomic.LoadUint32(img.word(off))
}

// Header returns the interface size and version currently stamped.
func (img *Image) Header() (size, version uint32) {
	return img.Load(constants.OffInterfaceSize), img.Load(constants.OffInterfaceVersion)
}

// Validate checks that the stamped header matches this build's layout.
func (img *Image) Validate() error {
	size, version := img.Header()
	if size != constants.ImageSize || version != constants.InterfaceVersion {
		return fmt.Errorf("%w: size=%d version=%d", ErrBadHeader, size, version)
	}
	return nil
}

// MasterStatus returns the published master status.
func (img *Image) MasterStatus() MasterStatus {
	return MasterStatus(img.Load(constants.OffMasterStatus))
}

// SlaveStatus returns the published slave status.
func (img *Image) SlaveStatus() SlaveStatus {
	return SlaveStatus(img.Load(constants.OffSlaveStatus))
}

// ============================================================================
// PER-SIDE VIEW
// ============================================================================

// View is one side's handle on the image.
type View struct {
	img  *Image
	side Side
}

func (v *View) Side() Side { return v.side }

func (v *View) Image() *Image { return v.img }

// Load reads the control word at off.
func (v *View) Load(off uint32) uint32 { return v.img.Load(off) }

// Store writes the control word at off. Writing a word owned by the other
// side panics: that is a bug in this process, not a peer fault.
func (v *View) Store(off uint32, val uint32) {
	if owner, ok := OwnerOf(off); !ok || owner != v.side {
		panic(fmt.Sprintf("image: %s may not write control word 0x%03x", v.side, off))
	}
	atomic.StoreUint32(v.img.word(off), val)
	if v.img.observer != nil {
		v.img.observer(v.side, off)
	}
}

// ReadPayload copies the record at off. The caller must have loaded the
// flag or index announcing it first.
func (v *View) ReadPayload(off uint32) types.Payload {
	return types.Decode(v.img.mem[off : off+constants.PayloadSize])
}

// WritePayload copies p into the record at off. The caller publishes it
// with a Store afterwards.
func (v *View) WritePayload(off uint32, p *types.Payload) {
	p.Encode(v.img.mem[off : off+constants.PayloadSize])
	if v.img.observer != nil {
		v.img.observer(v.side, off)
	}
}

// Boot zero-fills the whole image, slave-owned words included, and stamps
// the interface header. Only the master may call it, and only once, before
// it publishes its first session: a status left behind by an earlier run
// must not be mistaken for the new slave's. The observer sees a single
// WholeImage event.
func (v *View) Boot() error {
	if v.side != Master {
		return ErrNotOwner
	}
	for off := uint32(0); off < constants.ControlBytes; off += 4 {
		atomic.StoreUint32(v.img.word(off), 0)
	}
	clear(v.img.mem[constants.ControlBytes:])
	if v.img.observer != nil {
		v.img.observer(v.side, WholeImage)
	}
	v.Store(constants.OffInterfaceSize, constants.ImageSize)
	v.Store(constants.OffInterfaceVersion, constants.InterfaceVersion)
	return nil
}

// Reinitialize zero-fills the image and stamps the interface header. Only
// the master may call it. Words owned by the slave are left alone and the
// master status word is not touched; the caller publishes it afterwards so
// the slave never observes a transient NOT_READY.
func (v *View) Reinitialize() error {
	if v.side != Master {
		return ErrNotOwner
	}
	for off := uint32(0); off < constants.ControlBytes; off += 4 {
		if off == constants.OffMasterStatus {
			continue
		}
		if owner, ok := OwnerOf(off); ok && owner == Master {
			v.Store(off, 0)
		}
	}
	clear(v.img.mem[constants.ControlBytes:])
	if v.img.observer != nil {
		v.img.observer(v.side, constants.ControlBytes)
	}
	v.Store(constants.OffInterfaceSize, constants.ImageSize)
	v.Store(constants.OffInterfaceVersion, constants.InterfaceVersion)
	return nil
}

// ClearOwned zeroes the hi-pri flags and ring indices owned by this side.
// Status words and the header are left alone.
func (v *View) ClearOwned() {
	for _, d := range []Direction{M2S, S2M} {
		if d.Requester() == v.side {
			v.Store(d.ReqReadyOff(), 0)
		} else {
			v.Store(d.RspReadyOff(), 0)
		}
	}
	for _, q := range Queues {
		if q.Producer() == v.side {
			v.Store(q.HeadOff(), 0)
		} else {
			v.Store(q.TailOff(), 0)
		}
	}
}
