package netsync

import "errors"

var (
	ErrNotConnected             = errors.New("netsync: no established connection")
	ErrClosed                   = errors.New("netsync: endpoint closed")
	ErrAlreadyRunning           = errors.New("netsync: endpoint already running")
	ErrDuplicateConnection      = errors.New("netsync: duplicate connection id")
	ErrInvalidHeartbeatInterval = errors.New("netsync: invalid heartbeat interval")
	ErrInvalidMissedPingLimit   = errors.New("netsync: invalid missed ping limit")
	ErrURLRequired              = errors.New("netsync: follower url required")
)
