package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Pipeline failure sentinels. Every terminal failure matches exactly one of them.
var (
	ErrSourceUnavailable  = errors.New("source unavailable")
	ErrNoFormatsFound     = errors.New("no formats found")
	ErrNotFound           = errors.New("requested quality not found")
	ErrFormatGone         = errors.New("format no longer available")
	ErrSizeRejected       = errors.New("size rejected")
	ErrMergeFailed        = errors.New("merge failed")
	ErrConversionFailed   = errors.New("conversion failed")
	ErrTransportTransient = errors.New("transient transport failure")
	ErrDeliveryFailed     = errors.New("delivery failed")
	ErrSessionBusy        = errors.New("already in progress")
	ErrSessionExpired     = errors.New("session expired")
)

// ErrorKind is a stable name of a taxonomy member, used for metric labels and texts
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindSourceUnavailable ErrorKind = "source_unavailable"
	KindNoFormatsFound    ErrorKind = "no_formats_found"
	KindNotFound          ErrorKind = "not_found"
	KindFormatGone        ErrorKind = "format_gone"
	KindSizeRejected      ErrorKind = "size_rejected"
	KindMergeFailed       ErrorKind = "merge_failed"
	KindConversionFailed  ErrorKind = "conversion_failed"
	KindTransient         ErrorKind = "transport_transient"
	KindDeliveryFailed    ErrorKind = "delivery_failed"
	KindSessionBusy       ErrorKind = "session_busy"
	KindSessionExpired    ErrorKind = "session_expired"
	KindCanceled          ErrorKind = "canceled"
	KindUnknown           ErrorKind = "unknown"
)

// order matters: DeliveryFailed wraps the last transient error
var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrDeliveryFailed, KindDeliveryFailed},
	{ErrSizeRejected, KindSizeRejected},
	{ErrSourceUnavailable, KindSourceUnavailable},
	{ErrNoFormatsFound, KindNoFormatsFound},
	{ErrNotFound, KindNotFound},
	{ErrFormatGone, KindFormatGone},
	{ErrMergeFailed, KindMergeFailed},
	{ErrConversionFailed, KindConversionFailed},
	{ErrTransportTransient, KindTransient},
	{ErrSessionBusy, KindSessionBusy},
	{ErrSessionExpired, KindSessionExpired},
}

// Kind maps err to its taxonomy member
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindUnknown
}

// SizeRejectedError reports a size above a configured ceiling
type SizeRejectedError struct {
	Size  int64
	Limit int64
}

func (e *SizeRejectedError) Error() string {
	return fmt.Sprintf("size rejected: %s exceeds the %s ceiling",
		humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Limit)))
}

// Is makes SizeRejectedError match ErrSizeRejected
func (e *SizeRejectedError) Is(target error) bool {
	return target == ErrSizeRejected
}

// NewSizeRejected creates a SizeRejectedError
func NewSizeRejected(size, limit int64) error {
	return &SizeRejectedError{Size: size, Limit: limit}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() []error {
	return []error{ErrTransportTransient, e.err}
}

// MarkTransient wraps err so that it matches ErrTransportTransient
func MarkTransient(err error) error {
	if err == nil || errors.Is(err, ErrTransportTransient) {
		return err
	}
	return &transientError{err: err}
}

// IsTransient reports whether err may succeed on retry
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransportTransient)
}
