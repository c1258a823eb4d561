// ============================================================================
// MAILBOX SESSION ENDPOINTS
// ============================================================================
//
// A session endpoint is one side's driver for the shared mailbox image. The
// caller polls Drive() once per tick from a single goroutine; nothing here
// blocks or waits on the peer.
//
// Each Drive() call:
//   1. Loads the peer status word once.
//   2. Runs the session state machine, but only when that value differs from
//      the last one this side acted on (edge-triggered).
//   3. When this side is READY and the peer reported READY, advances the
//      hi-pri TX/RX handshakes and services the lo-pri rings.
//
// The master's first Drive is its boot: it wipes the whole image, slave
// status included, and publishes WAITING_FOR_SLAVE without looking at the
// peer. It must run before the slave's first Drive over a reused region.
//
// Failure model:
//   - Protocol violations and a peer FATAL_ERROR move this side to
//     FATAL_ERROR, publish it, and make every later Drive() return ErrFatal.
//   - A failing Handler hook returns ErrCallback and leaves the edge pending,
//     so the same transition is attempted on the next Drive().
//   - ring.ErrFull from Post is local and recoverable.

package session

import (
	"errors"

	"github.com/go-logr/logr"

	"mailbox/constants"
	"mailbox/image"
	"mailbox/ring"
	"mailbox/types"
)

var (
	// ErrProtocolViolation reports a peer status or image state this side's
	// transition table does not allow. Fatal.
	ErrProtocolViolation = errors.New("session: protocol violation")
	// ErrPeerFailed reports that the peer published FATAL_ERROR. Fatal.
	ErrPeerFailed = errors.New("session: peer reported FATAL_ERROR")
	// ErrFatal is returned by every Drive after this side failed.
	ErrFatal = errors.New("session: side is in FATAL_ERROR")
	// ErrCallback wraps an error returned by a Handler hook.
	ErrCallback = errors.New("session: handler callback failed")
	// ErrNotReady is returned by Post outside an established session.
	ErrNotReady = errors.New("session: session not established")
	// ErrResetRefused is returned by RequestReset unless both sides are READY.
	ErrResetRefused = errors.New("session: reset requires an established session")
)

// Handler is the set of collaborator hooks a side is constructed with. All
// hooks run on the goroutine calling Drive and receive that side's view.
type Handler interface {
	// ResetState is called when the peer demands a reset.
	ResetState(v *image.View) error
	// GetReady is called when the peer has reached session-ready.
	GetReady(v *image.View) error
	// DispatchRequest answers a hi-pri request or a lo-pri *_req entry.
	DispatchRequest(v *image.View, req types.Payload) types.Payload
	// DispatchResponse receives a hi-pri response or a lo-pri *_rsp entry.
	DispatchResponse(v *image.View, rsp types.Payload)
	// NextRequest sources the next outgoing hi-pri request, if any.
	NextRequest() (types.Payload, bool)
}

// Endpoint is what a poll loop and a traffic source need from either side.
type Endpoint interface {
	Side() image.Side
	Drive() error
	Post(p types.Payload) error
	Ready() bool
	Progress() uint64
}

// Options tunes an endpoint.
type Options struct {
	// Log receives transitions at V(0) and channel progress at V(1).
	Log logr.Logger
	// LowPriorityBudget bounds the entries serviced per lo-pri queue per
	// tick. Zero disables lo-pri servicing.
	LowPriorityBudget int
}

// DefaultOptions returns options with lo-pri servicing enabled and logging
// discarded.
func DefaultOptions() Options {
	return Options{Log: logr.Discard(), LowPriorityBudget: constants.DefaultLowPriorityBudget}
}

// ============================================================================
// SHARED ENDPOINT CORE
// ============================================================================

// endpoint carries everything both sides drive identically: the view, the
// hooks, the hi-pri sub-states and the four ring handles.
type endpoint struct {
	view   *image.View
	h      Handler
	log    logr.Logger
	budget int

	tx       txState
	rx       rxState
	progress uint64

	outReq ring.Queue // requests we produce
	outRsp ring.Queue // responses we produce
	inReq  ring.Queue // requests the peer produces
	inRsp  ring.Queue // responses the peer produces
}

func newEndpoint(img *image.Image, side image.Side, h Handler, opts Options) endpoint {
	v := img.View(side)
	peer := side.Peer()
	return endpoint{
		view:   v,
		h:      h,
		log:    opts.Log.WithValues("side", side.String()),
		budget: opts.LowPriorityBudget,
		tx:     txIdle,
		rx:     rxWaitingForRequest,
		outReq: ring.New(v, image.RequestQueue(side)),
		outRsp: ring.New(v, image.ResponseQueue(side)),
		inReq:  ring.New(v, image.RequestQueue(peer)),
		inRsp:  ring.New(v, image.ResponseQueue(peer)),
	}
}

// Side returns the role this endpoint drives.
func (e *endpoint) Side() image.Side { return e.view.Side() }

// Progress counts state changes made by this side: transitions, hi-pri
// steps and lo-pri entries. Poll loops compare it across ticks to tell a
// productive tick from an idle one.
func (e *endpoint) Progress() uint64 { return e.progress }

// View exposes this side's view of the image.
func (e *endpoint) View() *image.View { return e.view }
