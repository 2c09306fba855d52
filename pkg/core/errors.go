package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the closed error-kind set. Callers compare against
// these with errors.Is; Error wraps one of them with structured context
// (id/index/detail) when the call site has it.
var (
	ErrUnknownCorticalArea   = errors.New("unknown cortical area")
	ErrDuplicateCorticalArea = errors.New("duplicate cortical area")
	ErrCorticalIndexInUse    = errors.New("cortical index already in use")
	ErrCapacityExceeded      = errors.New("capacity exceeded")
	ErrInvalidNeuron         = errors.New("invalid neuron")
	ErrInvalidSynapse        = errors.New("invalid synapse")
	ErrInvalidMorphology     = errors.New("invalid morphology")
	ErrBackendUnavailable    = errors.New("backend error")
	ErrPublishTransient      = errors.New("publish transient: agent not yet attached")
	ErrInternal              = errors.New("internal invariant violation")
)

// Error wraps one of the sentinel errors above with call-site context.
// It participates in errors.Is/errors.As through Unwrap.
type Error struct {
	Sentinel error
	ID       string
	Index    uint32
	Detail   string
}

func (e *Error) Error() string {
	switch {
	case e.ID != "" && e.Detail != "":
		return fmt.Sprintf("%s (id=%s): %s", e.Sentinel, e.ID, e.Detail)
	case e.ID != "":
		return fmt.Sprintf("%s (id=%s)", e.Sentinel, e.ID)
	case e.Detail != "" && e.Index != 0:
		return fmt.Sprintf("%s (index=%d): %s", e.Sentinel, e.Index, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Sentinel, e.Detail)
	case e.Index != 0:
		return fmt.Sprintf("%s (index=%d)", e.Sentinel, e.Index)
	default:
		return e.Sentinel.Error()
	}
}

func (e *Error) Unwrap() error { return e.Sentinel }

// UnknownCorticalArea builds an Error for a lookup miss by id.
func UnknownCorticalArea(id string) *Error {
	return &Error{Sentinel: ErrUnknownCorticalArea, ID: id}
}

// UnknownCorticalAreaIndex builds an Error for a lookup miss by index.
func UnknownCorticalAreaIndex(idx CorticalIndex) *Error {
	return &Error{Sentinel: ErrUnknownCorticalArea, Index: uint32(idx)}
}

// DuplicateCorticalArea builds an Error for a registration of an id that
// already exists.
func DuplicateCorticalArea(id string) *Error {
	return &Error{Sentinel: ErrDuplicateCorticalArea, ID: id}
}

// CorticalIndexInUse builds an Error for a registration whose explicit
// index is already taken.
func CorticalIndexInUse(idx CorticalIndex) *Error {
	return &Error{Sentinel: ErrCorticalIndexInUse, Index: uint32(idx)}
}

// CapacityExceeded builds an Error describing which store is full.
func CapacityExceeded(what string) *Error {
	return &Error{Sentinel: ErrCapacityExceeded, Detail: what}
}

// InvalidNeuron builds an Error for an update targeting a nonexistent or
// tombstoned neuron.
func InvalidNeuron(id NeuronID) *Error {
	return &Error{Sentinel: ErrInvalidNeuron, Detail: fmt.Sprintf("neuron %d", id)}
}

// InvalidSynapse builds an Error for an update targeting a nonexistent
// source/target pair.
func InvalidSynapse(src, tgt NeuronID) *Error {
	return &Error{Sentinel: ErrInvalidSynapse, Detail: fmt.Sprintf("%d -> %d", src, tgt)}
}

// InvalidMorphology builds an Error for an unparsable/unsupported
// synaptogenesis rule.
func InvalidMorphology(name string) *Error {
	return &Error{Sentinel: ErrInvalidMorphology, Detail: name}
}

// BackendErrorf builds a compute-backend Error.
func BackendErrorf(format string, args ...any) *Error {
	return &Error{Sentinel: ErrBackendUnavailable, Detail: fmt.Sprintf(format, args...)}
}

// PublishTransient builds an Error for a publisher that reports an agent
// is not yet attached; the caller keeps the subscription and retries.
func PublishTransient(agentID string) *Error {
	return &Error{Sentinel: ErrPublishTransient, ID: agentID}
}

// Internalf builds an Error for an invariant violation.
func Internalf(format string, args ...any) *Error {
	return &Error{Sentinel: ErrInternal, Detail: fmt.Sprintf(format, args...)}
}
