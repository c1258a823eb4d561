package session

import (
	"fmt"

	"mailbox/constants"
	"mailbox/image"
	"mailbox/metrics"
	"mailbox/types"
)

// Master drives the host side of a session. It owns the image header and
// re-initializes the image at the start of every session.
type Master struct {
	endpoint
	state    image.MasterStatus
	lastPeer image.SlaveStatus
}

// NewMaster builds the master endpoint over img. Nothing is written until
// the first Drive, which wipes the whole image whatever it holds.
func NewMaster(img *image.Image, h Handler, opts Options) *Master {
	return &Master{
		endpoint: newEndpoint(img, image.Master, h, opts),
		state:    image.MasterNotReady,
		lastPeer: image.SlaveUninitialized,
	}
}

// Status returns the master's local session state.
func (m *Master) Status() image.MasterStatus { return m.state }

// Ready reports whether the master considers the session established.
func (m *Master) Ready() bool { return m.state == image.MasterReady }

// Drive runs one tick.
func (m *Master) Drive() error {
	if m.state == image.MasterFatalError {
		return ErrFatal
	}
	if m.state == image.MasterNotReady {
		return m.boot()
	}

	peer := m.view.Image().SlaveStatus()
	if peer != m.lastPeer {
		if err := m.onSlaveStatus(peer); err != nil {
			return err
		}
		m.lastPeer = peer
	}

	if m.state == image.MasterReady && peer == image.SlaveReady {
		if err := m.service(); err != nil {
			return m.fail(fmt.Errorf("%w: %w", ErrProtocolViolation, err))
		}
	}
	return nil
}

// Post queues p on m2s_req.
func (m *Master) Post(p types.Payload) error {
	if m.state != image.MasterReady {
		return ErrNotReady
	}
	return m.post(p)
}

// onSlaveStatus applies the master transition table to a changed slave
// status. A nil return consumes the edge.
func (m *Master) onSlaveStatus(peer image.SlaveStatus) error {
	if !peer.Valid() {
		return m.fail(fmt.Errorf("%w: slave reported %s", ErrProtocolViolation, peer))
	}
	if peer == image.SlaveFatalError {
		return m.fail(ErrPeerFailed)
	}

	switch m.state {
	case image.MasterWaitingForSlave:
		switch peer {
		case image.SlaveNotReady:
			return nil
		case image.SlaveReady:
			if err := m.h.GetReady(m.view); err != nil {
				return fmt.Errorf("%w: master GetReady: %w", ErrCallback, err)
			}
			m.publish(image.MasterReady)
			return nil
		case image.SlaveWaitingForMBReset:
			return m.reinitialize()
		}

	case image.MasterReady:
		switch peer {
		case image.SlaveNotReady:
			return m.fail(fmt.Errorf("%w: slave regressed to NOT_READY", ErrProtocolViolation))
		case image.SlaveReady:
			return nil
		case image.SlaveWaitingForMBReset:
			m.log.Info("slave requested mailbox reset")
			if err := m.h.ResetState(m.view); err != nil {
				return fmt.Errorf("%w: master ResetState: %w", ErrCallback, err)
			}
			return m.reinitialize()
		}
	}
	return m.fail(fmt.Errorf("%w: master in %s saw slave %s", ErrProtocolViolation, m.state, peer))
}

// boot leaves NOT_READY whatever the slave word holds: a READY, FATAL_ERROR
// or garbage status left by an earlier run is wiped along with the rest of
// the image, so the next slave status the master acts on is written by the
// slave joining this session.
func (m *Master) boot() error {
	if err := m.view.Boot(); err != nil {
		return m.fail(err)
	}
	m.lastPeer = image.SlaveNotReady
	m.publish(image.MasterWaitingForSlave)
	return nil
}

// reinitialize zero-fills the image, stamps the header and publishes
// WAITING_FOR_SLAVE. The status word is written last.
func (m *Master) reinitialize() error {
	if err := m.view.Reinitialize(); err != nil {
		return m.fail(err)
	}
	m.publish(image.MasterWaitingForSlave)
	return nil
}

// publish records and stores a new master state.
func (m *Master) publish(to image.MasterStatus) {
	from := m.state
	if from == image.MasterReady && to != image.MasterReady {
		m.resetChannels()
	}
	m.state = to
	m.progress++
	m.view.Store(constants.OffMasterStatus, uint32(to))

	metrics.SessionTransitionsTotal.WithLabelValues("master", from.String(), to.String()).Inc()
	m.log.Info("session transition", "from", from.String(), "to", to.String())
}

// fail moves the master to FATAL_ERROR and returns err for the caller.
func (m *Master) fail(err error) error {
	m.publish(image.MasterFatalError)
	metrics.FatalErrorsTotal.WithLabelValues("master").Inc()
	m.log.Error(err, "session failed")
	return err
}
