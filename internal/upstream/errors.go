package upstream

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindWarming means the upstream was unreachable or timed out, typically a
	// cold start. Always retryable by the client after a delay.
	KindWarming Kind = iota
	// KindUpstream means the upstream was reachable but rejected the request.
	KindUpstream
	// KindInternal covers everything else.
	KindInternal
)

type Error struct {
	Kind   Kind
	Status int   // HTTP status, set for KindUpstream
	Err    error // underlying cause; never surfaced to clients
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindWarming:
		return "upstream warming up"
	case KindUpstream:
		return fmt.Sprintf("upstream rejected request: status %d", e.Status)
	}
	if e.Err != nil {
		return "upstream internal error: " + e.Err.Error()
	}
	return "upstream internal error"
}

func (e *Error) Unwrap() error { return e.Err }

func IsWarming(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Kind == KindWarming
}

func IsUpstream(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Kind == KindUpstream
}
