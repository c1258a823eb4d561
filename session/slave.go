package session

import (
	"fmt"

	"mailbox/constants"
	"mailbox/image"
	"mailbox/metrics"
	"mailbox/types"
)

// Slave drives the device side of a session.
type Slave struct {
	endpoint
	state    image.SlaveStatus
	lastPeer image.MasterStatus
}

// NewSlave builds the slave endpoint over img. The slave joins once it sees
// the master publish WAITING_FOR_SLAVE over a valid header.
func NewSlave(img *image.Image, h Handler, opts Options) *Slave {
	return &Slave{
		endpoint: newEndpoint(img, image.Slave, h, opts),
		state:    image.SlaveNotReady,
		lastPeer: image.MasterUninitialized,
	}
}

// Status returns the slave's local session state.
func (s *Slave) Status() image.SlaveStatus { return s.state }

// Ready reports whether the slave considers the session established.
func (s *Slave) Ready() bool { return s.state == image.SlaveReady }

// Drive runs one tick.
func (s *Slave) Drive() error {
	if s.state == image.SlaveFatalError {
		return ErrFatal
	}

	peer := s.view.Image().MasterStatus()
	if peer != s.lastPeer {
		if err := s.onMasterStatus(peer); err != nil {
			return err
		}
		s.lastPeer = peer
	}

	if s.state == image.SlaveReady && peer == image.MasterReady {
		if err := s.service(); err != nil {
			return s.fail(fmt.Errorf("%w: %w", ErrProtocolViolation, err))
		}
	}
	return nil
}

// Post queues p on s2m_req.
func (s *Slave) Post(p types.Payload) error {
	if s.state != image.SlaveReady {
		return ErrNotReady
	}
	return s.post(p)
}

// RequestReset asks the master to re-initialize the image. The master must
// have been seen READY: only its READY -> WAITING_FOR_SLAVE edge tells the
// slave that the re-zero happened.
func (s *Slave) RequestReset() error {
	if s.state != image.SlaveReady || s.lastPeer != image.MasterReady {
		return fmt.Errorf("%w: slave %s, master %s", ErrResetRefused, s.state, s.lastPeer)
	}
	s.publish(image.SlaveWaitingForMBReset)
	return nil
}

func (s *Slave) onMasterStatus(peer image.MasterStatus) error {
	if !peer.Valid() {
		return s.fail(fmt.Errorf("%w: master reported %s", ErrProtocolViolation, peer))
	}
	if peer == image.MasterFatalError {
		return s.fail(ErrPeerFailed)
	}

	switch s.state {
	case image.SlaveNotReady:
		switch peer {
		case image.MasterNotReady:
			return nil
		case image.MasterWaitingForSlave:
			if err := s.join(); err != nil {
				return err
			}
			if err := s.h.GetReady(s.view); err != nil {
				return fmt.Errorf("%w: slave GetReady: %w", ErrCallback, err)
			}
			s.publish(image.SlaveReady)
			return nil
		case image.MasterReady:
			return s.fail(fmt.Errorf("%w: master READY before slave joined", ErrProtocolViolation))
		}

	case image.SlaveReady:
		switch peer {
		case image.MasterNotReady:
			return s.resetToNotReady()
		case image.MasterReady, image.MasterWaitingForSlave:
			return nil
		}

	case image.SlaveWaitingForMBReset:
		switch peer {
		case image.MasterNotReady:
			return s.resetToNotReady()
		case image.MasterWaitingForSlave:
			if err := s.join(); err != nil {
				return err
			}
			s.publish(image.SlaveReady)
			return nil
		case image.MasterReady:
			return nil
		}
	}
	return s.fail(fmt.Errorf("%w: slave in %s saw master %s", ErrProtocolViolation, s.state, peer))
}

// join checks the header the master stamped and clears every word the slave
// owns, so the fresh session starts from empty rings and lowered flags.
func (s *Slave) join() error {
	if err := s.view.Image().Validate(); err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrProtocolViolation, err))
	}
	s.view.ClearOwned()
	return nil
}

func (s *Slave) resetToNotReady() error {
	if err := s.h.ResetState(s.view); err != nil {
		return fmt.Errorf("%w: slave ResetState: %w", ErrCallback, err)
	}
	s.publish(image.SlaveNotReady)
	return nil
}

func (s *Slave) publish(to image.SlaveStatus) {
	from := s.state
	if from == image.SlaveReady && to != image.SlaveReady {
		s.resetChannels()
	}
	s.state = to
	s.progress++
	s.view.Store(constants.OffSlaveStatus, uint32(to))

	metrics.SessionTransitionsTotal.WithLabelValues("slave", from.String(), to.String()).Inc()
	s.log.Info("session transition", "from", from.String(), "to", to.String())
}

func (s *Slave) fail(err error) error {
	s.publish(image.SlaveFatalError)
	metrics.FatalErrorsTotal.WithLabelValues("slave").Inc()
	s.log.Error(err, "session failed")
	return err
}
