package screenshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("screenshot renderer closed")

// Kind classifies a capture failure.
type Kind string

const (
	KindTimeout Kind = "timeout"
	KindNetwork Kind = "network-error"
	KindRender  Kind = "render-error"
)

// RenderError describes a failed capture.
type RenderError struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("screenshot %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" if err is not a RenderError.
func KindOf(err error) Kind {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

func classify(target string, err error) *RenderError {
	var re *RenderError
	if errors.As(err, &re) {
		return re
	}

	kind := KindRender
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded), strings.Contains(msg, "net::ERR_TIMED_OUT"):
		kind = KindTimeout
	case strings.Contains(msg, "net::ERR"):
		kind = KindNetwork
	}
	return &RenderError{Kind: kind, URL: target, Err: err}
}
