package model

import "time"

type FailureReason int

const (
	FailureNone FailureReason = iota
	FailureTimeout
	FailureConnect
	FailureHandshake
	FailureProcessSpawn
)

func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureConnect:
		return "connect_error"
	case FailureHandshake:
		return "handshake_error"
	case FailureProcessSpawn:
		return "process_spawn_error"
	default:
		return "unknown"
	}
}

// ProbeResult records the outcome of one liveness probe. Immutable once
// produced; Seq is the submission index and breaks latency ties downstream.
type ProbeResult struct {
	Endpoint *Endpoint
	Seq      int
	Latency  time.Duration
	Reason   FailureReason
	At       time.Time
}

func (r ProbeResult) Success() bool {
	return r.Reason == FailureNone
}

// ProbeBatch is the full result set of one run, exactly one entry per
// deduplicated endpoint.
type ProbeBatch []ProbeResult
