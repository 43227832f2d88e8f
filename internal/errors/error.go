package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure by the boundary it crossed.
type Kind string

const (
	KindDNS   Kind = "dns"
	KindHTTP  Kind = "http"
	KindQuota Kind = "quota"
	KindStore Kind = "store"
	KindCache Kind = "cache"
	KindFatal Kind = "fatal"
)

var (
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrSourceDisabled   = errors.New("source not configured")
	ErrCacheMiss        = errors.New("cache miss")
	ErrNotFound         = errors.New("not found")
	ErrInvalidIP        = errors.New("invalid ip address")
	ErrInvalidDomain    = errors.New("invalid domain name")
	ErrStoreUnavailable = errors.New("store unavailable")
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the outermost kind found in the chain, or "" when untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
