package checker

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/August26/proxyscout/internal/model"
)

// DialError is a failed dial attempt with its kind preserved.
type DialError struct {
	Kind model.ErrKind
	Err  error
}

func (e *DialError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *DialError) Unwrap() error {
	return e.Err
}

func protocolError(err error) *DialError {
	return &DialError{Kind: model.KindProtocol, Err: err}
}

// classify maps an arbitrary dial error onto a DialError.
func classify(err error) *DialError {
	var de *DialError
	if errors.As(err, &de) {
		return de
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &DialError{Kind: model.KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &DialError{Kind: model.KindCancelled, Err: err}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &DialError{Kind: model.KindConnectionRefused, Err: err}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &DialError{Kind: model.KindTimeout, Err: err}
	}

	// h12.io/socks flattens some errors into strings.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"):
		return &DialError{Kind: model.KindConnectionRefused, Err: err}
	case strings.Contains(msg, "i/o timeout"), strings.Contains(msg, "timed out"):
		return &DialError{Kind: model.KindTimeout, Err: err}
	}
	return protocolError(err)
}
