// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: agent.go — Per-side traffic source and handler for the simulator
//
// Purpose:
//   - Implements session.Handler for one side: answers requests, collects
//     responses and journals both.
//   - Feeds hi-pri requests through NextRequest and lo-pri requests through
//     Post, both sourced from blockq feeds filled by a producer goroutine.
//
// Notes:
//   - Everything except the feeds and the finished flag is touched only by
//     the side's poll loop.
//   - Requests lost to a mailbox reset are re-sent: the in-flight set is
//     moved to the retry list whenever the side abandons its session.
// ─────────────────────────────────────────────────────────────────────────────

package main

import (
	"context"
	"errors"
	"sync/atomic"

	"mailbox/blockq"
	"mailbox/control"
	"mailbox/debug"
	"mailbox/image"
	"mailbox/journal"
	"mailbox/ring"
	"mailbox/session"
	"mailbox/types"
)

const (
	serviceHiPri = 1 // requests sent through the hi-pri slot
	serviceLoPri = 2 // requests sent through the *_req ring

	answered = 0x8000_0000 // set in CommandID by the responder

	feedSlots = 32
)

// agent drives the traffic of one side.
type agent struct {
	side    image.Side
	ep      session.Endpoint
	journal *journal.Journal

	hiFeed *blockq.Queue
	loFeed *blockq.Queue

	produced atomic.Bool // producer enqueued everything
	finished atomic.Bool // every request sent and answered

	retryHi  []types.Payload
	retryLo  []types.Payload
	inflight map[flight]types.Payload

	// resetAt asks for a mailbox reset once this many responses arrived;
	// zero never asks.
	resetAt   uint64
	resetDone bool

	sent, received, served uint64
}

// flight identifies an outstanding request.
type flight struct {
	service uint32
	tag     uint64
}

func flightOf(p types.Payload) flight { return flight{p.ServiceID, p.SenderTag} }

// resetter is implemented by the side that may ask for a mailbox reset.
type resetter interface {
	RequestReset() error
}

func newAgent(side image.Side, j *journal.Journal) *agent {
	return &agent{
		side:     side,
		journal:  j,
		hiFeed:   blockq.New(feedSlots),
		loFeed:   blockq.New(feedSlots),
		inflight: make(map[flight]types.Payload),
	}
}

// produce enqueues n hi-pri and n lo-pri requests, blocking while the feeds
// are full.
func (a *agent) produce(ctx context.Context, n int) error {
	control.ShutdownWG.Add(1)
	defer control.ShutdownWG.Done()

	for i := 0; i < n; i++ {
		tag := uint64(a.side)<<32 | uint64(i)
		hi := types.Payload{ServiceID: serviceHiPri, CommandID: uint32(i), SenderTag: tag}
		lo := types.Payload{ServiceID: serviceLoPri, CommandID: uint32(i), SenderTag: tag}
		hi.Data[0], lo.Data[0] = uint32(i), ^uint32(i)

		if err := a.hiFeed.Enqueue(ctx, hi); err != nil {
			return err
		}
		if err := a.loFeed.Enqueue(ctx, lo); err != nil {
			return err
		}
		control.SignalActivity()
	}
	a.produced.Store(true)
	return nil
}

// ============================================================================
// SESSION HANDLER
// ============================================================================

func (a *agent) ResetState(*image.View) error {
	a.abandon()
	return nil
}

func (a *agent) GetReady(v *image.View) error {
	debug.DropMessage(a.side.String(), "session ready")
	return nil
}

func (a *agent) DispatchRequest(_ *image.View, req types.Payload) types.Payload {
	a.record(journal.KindRequest, req)
	a.served++
	rsp := req
	rsp.CommandID |= answered
	for i := range rsp.Data {
		rsp.Data[i] = ^rsp.Data[i]
	}
	return rsp
}

func (a *agent) DispatchResponse(_ *image.View, rsp types.Payload) {
	a.record(journal.KindResponse, rsp)
	if rsp.CommandID&answered == 0 {
		debug.DropMessage(a.side.String(), "unanswered payload in response path")
		return
	}
	rsp.CommandID &^= answered
	k := flightOf(rsp)
	if _, ok := a.inflight[k]; !ok {
		return
	}
	delete(a.inflight, k)
	a.received++
}

func (a *agent) NextRequest() (types.Payload, bool) {
	var p types.Payload
	if n := len(a.retryHi); n > 0 {
		p, a.retryHi = a.retryHi[n-1], a.retryHi[:n-1]
	} else {
		var err error
		if p, err = a.hiFeed.TryDequeue(); err != nil {
			return types.Payload{}, false
		}
	}
	a.track(p)
	return p, true
}

// ============================================================================
// POLL LOOP HOOK
// ============================================================================

// tick posts pending lo-pri requests and updates the finished flag. It runs
// on the side's poll loop after every Drive.
func (a *agent) tick() {
	if a.ep.Ready() {
		a.postLowPriority()
		a.maybeReset()
	}
	a.finished.Store(a.settled())
}

// maybeReset asks for a mailbox reset once resetAt responses arrived. A
// refusal is retried on the next tick.
func (a *agent) maybeReset() {
	if a.resetAt == 0 || a.resetDone || a.received < a.resetAt {
		return
	}
	r, ok := a.ep.(resetter)
	if !ok {
		return
	}
	if err := r.RequestReset(); err != nil {
		return
	}
	a.resetDone = true
	a.abandon()
	debug.DropMessage(a.side.String(), "mailbox reset requested")

	if a.journal != nil {
		if _, err := a.journal.NewSession(); err != nil {
			debug.DropError(a.side.String()+": journal session", err)
		}
	}
}

func (a *agent) postLowPriority() {
	for {
		var p types.Payload
		fromRetry := len(a.retryLo) > 0
		if fromRetry {
			p = a.retryLo[len(a.retryLo)-1]
		} else {
			var err error
			if p, err = a.loFeed.TryDequeue(); err != nil {
				return
			}
		}

		err := a.ep.Post(p)
		if fromRetry && err == nil {
			a.retryLo = a.retryLo[:len(a.retryLo)-1]
		}
		switch {
		case err == nil:
			a.track(p)
		case errors.Is(err, ring.ErrFull), errors.Is(err, session.ErrNotReady):
			if !fromRetry {
				a.retryLo = append(a.retryLo, p)
			}
			return
		default:
			debug.DropError(a.side.String()+": post", err)
			return
		}
	}
}

func (a *agent) track(p types.Payload) {
	a.inflight[flightOf(p)] = p
	a.sent++
	control.SignalActivity()
}

// abandon moves every unanswered request to the retry lists. Called when
// this side's session is torn down and the image is about to be re-zeroed.
func (a *agent) abandon() {
	for k, p := range a.inflight {
		if p.ServiceID == serviceHiPri {
			a.retryHi = append(a.retryHi, p)
		} else {
			a.retryLo = append(a.retryLo, p)
		}
		delete(a.inflight, k)
	}
}

func (a *agent) settled() bool {
	return a.produced.Load() &&
		(a.resetAt == 0 || a.resetDone) &&
		a.hiFeed.IsEmpty() && a.loFeed.IsEmpty() &&
		len(a.retryHi) == 0 && len(a.retryLo) == 0 &&
		len(a.inflight) == 0
}

func (a *agent) record(kind string, p types.Payload) {
	if a.journal == nil {
		return
	}
	if err := a.journal.Record(a.side, kind, p); err != nil {
		debug.DropError(a.side.String()+": journal", err)
	}
}
