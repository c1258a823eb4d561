package image

import "strconv"

// MasterStatus is the value the master publishes at OffMasterStatus.
type MasterStatus uint32

const (
	MasterNotReady        MasterStatus = 0
	MasterReady           MasterStatus = 1
	MasterWaitingForSlave MasterStatus = 2
	MasterFatalError      MasterStatus = 3
	// MasterUninitialized is reserved; it is only used locally by the slave
	// as its "nothing observed yet" marker and is never published.
	MasterUninitialized MasterStatus = 4
)

// Valid reports whether s is a status a master may publish.
func (s MasterStatus) Valid() bool { return s <= MasterFatalError }

func (s MasterStatus) String() string {
	switch s {
	case MasterNotReady:
		return "NOT_READY"
	case MasterReady:
		return "READY"
	case MasterWaitingForSlave:
		return "WAITING_FOR_SLAVE"
	case MasterFatalError:
		return "FATAL_ERROR"
	case MasterUninitialized:
		return "UNINITIALIZED"
	}
	return "INVALID(" + strconv.FormatUint(uint64(s), 10) + ")"
}

// SlaveStatus is the value the slave publishes at OffSlaveStatus.
type SlaveStatus uint32

const (
	SlaveNotReady          SlaveStatus = 0
	SlaveReady             SlaveStatus = 1
	SlaveWaitingForMBReset SlaveStatus = 2
	SlaveFatalError        SlaveStatus = 3
	// SlaveUninitialized is reserved, see MasterUninitialized.
	SlaveUninitialized SlaveStatus = 4
)

// Valid reports whether s is a status a slave may publish.
func (s SlaveStatus) Valid() bool { return s <= SlaveFatalError }

func (s SlaveStatus) String() string {
	switch s {
	case SlaveNotReady:
		return "NOT_READY"
	case SlaveReady:
		return "READY"
	case SlaveWaitingForMBReset:
		return "WAITING_FOR_MB_RESET"
	case SlaveFatalError:
		return "FATAL_ERROR"
	case SlaveUninitialized:
		return "UNINITIALIZED"
	}
	return "INVALID(" + strconv.FormatUint(uint64(s), 10) + ")"
}
