package image

import (
	"context"
	"errors"
	"net"
)

// ErrBackendBusy is returned for any non-200 backend status.
var ErrBackendBusy = errors.New("backend engine busy")

type FaultKind string

const (
	FaultTimeout    FaultKind = "upstream request timed out"
	FaultLookup     FaultKind = "upstream host lookup failed"
	FaultConnection FaultKind = "upstream connection failed"
	FaultCanceled   FaultKind = "upstream request canceled"
	FaultRequest    FaultKind = "upstream request failed"
	FaultTooLarge   FaultKind = "upstream response too large"
)

// FaultError is a transport level failure. Error reports only the kind so
// that resolver and dialer details do not reach API callers; Unwrap exposes
// the cause for logging.
type FaultError struct {
	Kind FaultKind
	Err  error
}

func (e *FaultError) Error() string {
	return string(e.Kind)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

func newFault(err error) *FaultError {
	return &FaultError{Kind: classify(err), Err: err}
}

func classify(err error) FaultKind {
	var (
		netErr net.Error
		dnsErr *net.DNSError
		opErr  *net.OpError
	)
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return FaultTimeout
	case errors.Is(err, context.DeadlineExceeded):
		return FaultTimeout
	case errors.Is(err, context.Canceled):
		return FaultCanceled
	case errors.As(err, &dnsErr):
		return FaultLookup
	case errors.As(err, &opErr):
		return FaultConnection
	default:
		return FaultRequest
	}
}
