package preview

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/browser"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/guard"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/screenshot"
)

// Code identifies an error class of the preview API.
type Code string

const (
	CodeInvalidRequest     Code = "invalid-request"
	CodeValidationRejected Code = "validation-rejected"
	CodeUpstreamTimeout    Code = "upstream-timeout"
	CodeUpstreamNotFound   Code = "upstream-not-found"
	CodeUpstreamRefused    Code = "upstream-refused"
	CodeUpstreamNetwork    Code = "upstream-network"
	CodeUpstreamHTTP       Code = "upstream-http-error"
	CodeRenderFailure      Code = "render-failure"
	CodeNotFound           Code = "not-found"
	CodeFailed             Code = "preview-failed"
)

// Suggestions for switching strategy.
const (
	SuggestScreenshot = "try_screenshot_method"
	SuggestProxy      = "try_proxy_method"
)

// TerminalMessage is reported once every strategy has failed.
const TerminalMessage = "Unable to load this preview. Please try again later or open the original website directly."

// Error is a classified failure carrying everything the API needs to
// answer the caller.
type Error struct {
	Code       Code
	Status     int
	Title      string
	Message    string
	Suggestion string
	// Reason is set for guard rejections.
	Reason guard.Reason
	// UpstreamStatus is set when the origin answered with an error.
	UpstreamStatus int
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Terminal reports whether no other strategy should be tried after e.
func (e *Error) Terminal() bool {
	return e.Code == CodeValidationRejected || e.Code == CodeInvalidRequest
}

// Invalid reports a missing or malformed parameter.
func Invalid(message string) *Error {
	return &Error{
		Code:    CodeInvalidRequest,
		Status:  http.StatusBadRequest,
		Title:   "Missing required parameter",
		Message: message,
	}
}

// NotFound reports an unknown session or share token.
func NotFound(message string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Status:  http.StatusNotFound,
		Title:   "Not found",
		Message: message,
	}
}

func rejected(err error) (*Error, bool) {
	var r *guard.Rejection
	if !errors.As(err, &r) {
		return nil, false
	}
	return &Error{
		Code:    CodeValidationRejected,
		Status:  http.StatusBadRequest,
		Title:   "Invalid URL",
		Message: r.Message,
		Reason:  r.Reason,
		Err:     err,
	}, true
}

// FromProxy classifies an error from the proxy strategy.
func FromProxy(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if e, ok := rejected(err); ok {
		return e
	}

	var fe *browser.FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case browser.KindTimeout:
			return &Error{
				Code:       CodeUpstreamTimeout,
				Status:     http.StatusGatewayTimeout,
				Title:      "Gateway timeout",
				Message:    "The website took too long to respond. Please try again or use screenshot mode.",
				Suggestion: SuggestScreenshot,
				Err:        err,
			}
		case browser.KindHTTPStatus:
			return &Error{
				Code:           CodeUpstreamHTTP,
				Status:         fe.Status,
				Title:          "Upstream error",
				Message:        "The website returned an error: " + fe.StatusText,
				UpstreamStatus: fe.Status,
				Err:            err,
			}
		case browser.KindNotFound:
			return &Error{
				Code:    CodeUpstreamNotFound,
				Status:  http.StatusNotFound,
				Title:   "Website not found",
				Message: "The website could not be found. Please check the URL.",
				Err:     err,
			}
		case browser.KindRefused:
			return &Error{
				Code:    CodeUpstreamRefused,
				Status:  http.StatusBadGateway,
				Title:   "Connection refused",
				Message: "The website refused the connection.",
				Err:     err,
			}
		}
	}

	return &Error{
		Code:       CodeRenderFailure,
		Status:     http.StatusInternalServerError,
		Title:      "Proxy error",
		Message:    "Failed to fetch the website. Please try again.",
		Suggestion: SuggestScreenshot,
		Err:        err,
	}
}

// FromScreenshot classifies an error from the capture strategy.
func FromScreenshot(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if e, ok := rejected(err); ok {
		return e
	}

	switch screenshot.KindOf(err) {
	case screenshot.KindTimeout:
		return &Error{
			Code:       CodeUpstreamTimeout,
			Status:     http.StatusGatewayTimeout,
			Title:      "Timeout",
			Message:    "Screenshot generation timed out. The website may be too slow or unresponsive.",
			Suggestion: SuggestProxy,
			Err:        err,
		}
	case screenshot.KindNetwork:
		return &Error{
			Code:    CodeUpstreamNetwork,
			Status:  http.StatusBadGateway,
			Title:   "Network error",
			Message: "Failed to reach the website. Please check the URL.",
			Err:     err,
		}
	}

	return &Error{
		Code:       CodeRenderFailure,
		Status:     http.StatusInternalServerError,
		Title:      "Screenshot failed",
		Message:    "Failed to generate screenshot. Please try again.",
		Suggestion: SuggestProxy,
		Err:        err,
	}
}

// failed wraps the last strategy error into the terminal error.
func failed(last *Error) *Error {
	status := http.StatusBadGateway
	if last != nil && last.Status >= 400 {
		status = last.Status
	}
	return &Error{
		Code:    CodeFailed,
		Status:  status,
		Title:   "Preview failed",
		Message: TerminalMessage,
		Err:     last,
	}
}
