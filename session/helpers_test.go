package session

import (
	"testing"

	"github.com/go-logr/zapr"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"mailbox/image"
	"mailbox/types"
)

// ============================================================================
// TEST UTILITIES AND HELPERS
// ============================================================================

// answered marks a payload produced by DispatchRequest.
const answered = 0x8000_0000

// recorder is a Handler that records every hook call. Each recorder is only
// touched by the goroutine driving its side.
type recorder struct {
	resets   int
	readies  int
	resetErr error // returned by the next ResetState, then cleared
	readyErr error // returned by the next GetReady, then cleared

	outbox    []types.Payload
	requests  []types.Payload
	responses []types.Payload
}

func (r *recorder) ResetState(*image.View) error {
	r.resets++
	err := r.resetErr
	r.resetErr = nil
	return err
}

func (r *recorder) GetReady(*image.View) error {
	r.readies++
	err := r.readyErr
	r.readyErr = nil
	return err
}

func (r *recorder) DispatchRequest(_ *image.View, req types.Payload) types.Payload {
	r.requests = append(r.requests, req)
	rsp := req
	rsp.CommandID |= answered
	return rsp
}

func (r *recorder) DispatchResponse(_ *image.View, rsp types.Payload) {
	r.responses = append(r.responses, rsp)
}

func (r *recorder) NextRequest() (types.Payload, bool) {
	if len(r.outbox) == 0 {
		return types.Payload{}, false
	}
	p := r.outbox[0]
	r.outbox = r.outbox[1:]
	return p, true
}

// msg builds a distinguishable payload.
func msg(service, command uint32, tag uint64) types.Payload {
	p := types.Payload{ServiceID: service, CommandID: command, SenderTag: tag}
	for i := range p.Data {
		p.Data[i] = service<<16 | uint32(i)
	}
	return p
}

func answer(p types.Payload) types.Payload {
	p.CommandID |= answered
	return p
}

// pair is a master and a slave sharing one heap image, driven from the
// test goroutine.
type pair struct {
	img *image.Image
	m   *Master
	s   *Slave
	mh  *recorder
	sh  *recorder
}

func testOptions(t *testing.T) Options {
	opts := DefaultOptions()
	opts.Log = zapr.NewLogger(zaptest.NewLogger(t))
	return opts
}

func newPair(t *testing.T, opts Options) *pair {
	t.Helper()
	img := image.New()
	mh, sh := &recorder{}, &recorder{}
	return &pair{
		img: img,
		m:   NewMaster(img, mh, opts),
		s:   NewSlave(img, sh, opts),
		mh:  mh,
		sh:  sh,
	}
}

// tick drives the master then the slave once.
func (p *pair) tick(g *WithT) {
	g.Expect(p.m.Drive()).To(Succeed())
	g.Expect(p.s.Drive()).To(Succeed())
}

// statuses returns the published (master, slave) status words.
func (p *pair) statuses() (image.MasterStatus, image.SlaveStatus) {
	return p.img.MasterStatus(), p.img.SlaveStatus()
}

// converge drives both sides until the session is established.
func (p *pair) converge(g *WithT) {
	for i := 0; i < 4 && !(p.m.Ready() && p.s.Ready()); i++ {
		p.tick(g)
	}
	g.Expect(p.m.Ready()).To(BeTrue(), "master did not reach READY")
	g.Expect(p.s.Ready()).To(BeTrue(), "slave did not reach READY")
}
