package session

import (
	"mailbox/image"
	"mailbox/metrics"
)

// txState is the requester half of one hi-pri direction.
type txState uint8

const (
	txIdle txState = iota
	txSentRequest
	txWaitingForRspClear
)

func (s txState) String() string {
	switch s {
	case txIdle:
		return "IDLE"
	case txSentRequest:
		return "SENT_REQUEST"
	case txWaitingForRspClear:
		return "WAITING_FOR_RSP_CLEAR"
	}
	return "INVALID"
}

// rxState is the responder half of one hi-pri direction.
type rxState uint8

const (
	rxWaitingForRequest rxState = iota
	rxSentResponse
)

func (s rxState) String() string {
	if s == rxWaitingForRequest {
		return "WAITING_FOR_REQUEST"
	}
	return "SENT_RESPONSE"
}

// stepTx advances the outbound direction by at most one state. The data
// slot is written before req_ready is raised and read after rsp_ready is
// observed; the atomic store and load order the plain copies.
func (e *endpoint) stepTx() {
	d := image.Outbound(e.view.Side())
	switch e.tx {
	case txIdle:
		req, ok := e.h.NextRequest()
		if !ok {
			return
		}
		e.view.WritePayload(d.DataOff(), &req)
		e.view.Store(d.ReqReadyOff(), 1)
		e.tx = txSentRequest
		e.progress++
		e.log.V(1).Info("hi-pri request sent", "dir", d, "service", req.ServiceID, "command", req.CommandID)

	case txSentRequest:
		if e.view.Load(d.RspReadyOff()) == 0 {
			return
		}
		rsp := e.view.ReadPayload(d.DataOff())
		e.h.DispatchResponse(e.view, rsp)
		e.view.Store(d.ReqReadyOff(), 0)
		e.tx = txWaitingForRspClear
		e.progress++
		metrics.HiPriMessagesTotal.WithLabelValues(e.view.Side().String(), "tx").Inc()
		e.log.V(1).Info("hi-pri response received", "dir", d)

	case txWaitingForRspClear:
		if e.view.Load(d.RspReadyOff()) != 0 {
			return
		}
		e.view.Store(d.ReqReadyOff(), 0)
		e.tx = txIdle
		e.progress++
	}
}

// stepRx advances the inbound direction by at most one state. The response
// overwrites the request in the same slot.
func (e *endpoint) stepRx() {
	d := image.Inbound(e.view.Side())
	switch e.rx {
	case rxWaitingForRequest:
		if e.view.Load(d.ReqReadyOff()) == 0 {
			return
		}
		req := e.view.ReadPayload(d.DataOff())
		rsp := e.h.DispatchRequest(e.view, req)
		e.view.WritePayload(d.DataOff(), &rsp)
		e.view.Store(d.RspReadyOff(), 1)
		e.rx = rxSentResponse
		e.progress++
		metrics.HiPriMessagesTotal.WithLabelValues(e.view.Side().String(), "rx").Inc()
		e.log.V(1).Info("hi-pri request answered", "dir", d, "service", req.ServiceID, "command", req.CommandID)

	case rxSentResponse:
		if e.view.Load(d.ReqReadyOff()) != 0 {
			return
		}
		e.view.Store(d.RspReadyOff(), 0)
		e.rx = rxWaitingForRequest
		e.progress++
	}
}

// resetChannels returns both hi-pri halves to their rest states. Called when
// the side leaves READY; the image words are cleared by the reinit path.
func (e *endpoint) resetChannels() {
	if e.tx != txIdle || e.rx != rxWaitingForRequest {
		e.log.Info("hi-pri exchange abandoned", "tx", e.tx, "rx", e.rx)
	}
	e.tx = txIdle
	e.rx = rxWaitingForRequest
}
