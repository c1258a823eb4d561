package session

import (
	"errors"

	"mailbox/metrics"
	"mailbox/ring"
	"mailbox/types"
)

// serviceLowPriority drains up to budget inbound requests and up to budget
// inbound responses. A request is only popped while the response ring has
// room, so an answer is never dropped. Only ring.ErrCorrupt escapes.
func (e *endpoint) serviceLowPriority() error {
	side := e.view.Side().String()

	for n := 0; n < e.budget; n++ {
		if e.outRsp.IsFull() {
			break
		}
		req, err := e.inReq.Pop()
		if errors.Is(err, ring.ErrEmpty) {
			break
		}
		if err != nil {
			return err
		}
		metrics.LoPriMessagesTotal.WithLabelValues(side, e.inReq.ID().String()).Inc()
		e.progress++

		rsp := e.h.DispatchRequest(e.view, req)
		if err := e.outRsp.Push(rsp); err != nil {
			return err
		}
		metrics.LoPriMessagesTotal.WithLabelValues(side, e.outRsp.ID().String()).Inc()
	}

	for n := 0; n < e.budget; n++ {
		rsp, err := e.inRsp.Pop()
		if errors.Is(err, ring.ErrEmpty) {
			break
		}
		if err != nil {
			return err
		}
		metrics.LoPriMessagesTotal.WithLabelValues(side, e.inRsp.ID().String()).Inc()
		e.progress++
		e.h.DispatchResponse(e.view, rsp)
	}
	return nil
}

// post pushes p onto this side's outbound request ring.
func (e *endpoint) post(p types.Payload) error {
	if err := e.outReq.Push(p); err != nil {
		if errors.Is(err, ring.ErrFull) {
			metrics.QueueFullTotal.WithLabelValues(e.outReq.ID().String()).Inc()
		}
		return err
	}
	metrics.LoPriMessagesTotal.WithLabelValues(e.view.Side().String(), e.outReq.ID().String()).Inc()
	return nil
}

// service runs one channel tick: hi-pri TX, hi-pri RX, then lo-pri.
func (e *endpoint) service() error {
	e.stepTx()
	e.stepRx()
	if e.budget > 0 {
		return e.serviceLowPriority()
	}
	return nil
}
