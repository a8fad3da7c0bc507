package core

import (
	"errors"
	"fmt"
)

// RejectClass groups rejection reasons. Every rejection is local and
// synchronous and leaves the store unchanged.
type RejectClass int32

const (
	// RejectValidation: bad parameters, rejected before any state change
	RejectValidation RejectClass = iota

	// RejectTemporal: call outside its valid time window
	RejectTemporal

	// RejectAuthorization: caller lacks the required identity
	RejectAuthorization

	// RejectStateConflict: double reveal, double settlement, double claim,
	// or operating on a terminal-state record
	RejectStateConflict

	// RejectIntegrity: commitment mismatch at reveal. Never discloses which
	// input differed.
	RejectIntegrity

	// RejectNotFound: unknown market or record
	RejectNotFound

	// RejectTransfer: outbound value transfer failed; the operation aborted
	// with no bookkeeping retained
	RejectTransfer
)

func (rc RejectClass) String() string {
	switch rc {
	case RejectValidation:
		return "validation"
	case RejectTemporal:
		return "temporal"
	case RejectAuthorization:
		return "authorization"
	case RejectStateConflict:
		return "state_conflict"
	case RejectIntegrity:
		return "integrity"
	case RejectNotFound:
		return "not_found"
	case RejectTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// RejectError is the typed rejection all handlers return
type RejectError struct {
	Class  RejectClass
	Reason string
	cause  error
}

func (e *RejectError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.cause)
	}
	return e.Reason
}

func (e *RejectError) Unwrap() error {
	return e.cause
}

func reject(class RejectClass, reason string) *RejectError {
	return &RejectError{Class: class, Reason: reason}
}

func rejectf(class RejectClass, format string, args ...interface{}) *RejectError {
	return &RejectError{Class: class, Reason: fmt.Sprintf(format, args...)}
}

func rejectWrap(class RejectClass, reason string, cause error) *RejectError {
	return &RejectError{Class: class, Reason: reason, cause: cause}
}

// ClassOf extracts the rejection class from an error chain
func ClassOf(err error) (RejectClass, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Class, true
	}
	return 0, false
}

// Stable rejection reasons shared across handlers
const (
	reasonPaused             = "Pausable: paused"
	reasonBetBelowMinimum    = "Bet below minimum"
	reasonBetAboveMaximum    = "Bet above maximum"
	reasonInvalidReveal      = "Invalid reveal"
	reasonFeeTooHigh         = "Fee too high"
	reasonCancelDeadline     = "Cancellation deadline passed"
	reasonMarketNotFound     = "Market not found"
	reasonRecordNotFound     = "Bet record not found"
	reasonAlreadyDistributed = "Rewards already distributed"
	reasonNothingToClaim     = "No claimable reward"
)
