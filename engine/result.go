package engine

import (
	"fmt"

	"github.com/mdfalcon104/survey-response-sync/syncerr"
)

// StopReasonKind discriminates the StopReason sum type (spec §4.5).
type StopReasonKind int

const (
	// StopNone means the drain ran to completion without an early stop.
	StopNone StopReasonKind = iota
	// StopNetworkDegradation means consecutive transient failures tripped
	// the early-stop threshold.
	StopNetworkDegradation
	// StopFatalError means an unrecoverable condition (no connectivity, or
	// a store write failure) ended the drain.
	StopFatalError
	// StopCancelled means the hosting context cancelled the drain.
	StopCancelled
)

// StopReason is the optional outcome annotation a drain produces in
// addition to its three id lists.
type StopReason struct {
	Kind                StopReasonKind
	ConsecutiveFailures int            // set only for StopNetworkDegradation
	Err                 *syncerr.Error // set only for StopFatalError; KindUnknown wrapping Cause for a store failure
	Cause               error          // set only for StopFatalError caused by a store failure
}

func (s *StopReason) String() string {
	if s == nil {
		return "none"
	}
	switch s.Kind {
	case StopNetworkDegradation:
		return fmt.Sprintf("NetworkDegradation(%d)", s.ConsecutiveFailures)
	case StopFatalError:
		if s.Err != nil {
			return fmt.Sprintf("FatalError(%s)", s.Err.Kind)
		}
		return fmt.Sprintf("FatalError(%v)", s.Cause)
	case StopCancelled:
		return "Cancelled"
	default:
		return "none"
	}
}

func stopNetworkDegradation(consecutive int) *StopReason {
	return &StopReason{Kind: StopNetworkDegradation, ConsecutiveFailures: consecutive}
}

func stopFatalUpload(err *syncerr.Error) *StopReason {
	return &StopReason{Kind: StopFatalError, Err: err}
}

func stopFatalStore(cause error) *StopReason {
	return &StopReason{Kind: StopFatalError, Err: syncerr.NewUnknown(cause), Cause: cause}
}

func stopCancelled() *StopReason {
	return &StopReason{Kind: StopCancelled}
}

// SyncResult summarizes one drain: three disjoint id sequences plus an
// optional stop reason (spec §4.5, P1).
type SyncResult struct {
	Succeeded []string
	Failed    []string
	Pending   []string
	Stop      *StopReason
}

// EmptyResult is the result of a drain over an empty pending set.
func EmptyResult() SyncResult {
	return SyncResult{}
}
