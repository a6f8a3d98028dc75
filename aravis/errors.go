package aravis

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
)

// ErrorCategory classifies pipeline errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryNetwork covers link failures (GVCP/GVSP timeouts, unplugged USB)
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryFormat covers caps negotiation and pixel format problems
	ErrCategoryFormat
	// ErrCategoryAccess covers cameras owned by another process or host
	ErrCategoryAccess
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryFormat:
		return "format"
	case ErrCategoryAccess:
		return "access"
	default:
		return "unknown"
	}
}

var (
	accessKeywords = []string{
		"access denied",
		"permission",
		"privilege",
		"busy",
		"in use",
		"already open",
		"exclusive",
	}
	formatKeywords = []string{
		"not negotiated",
		"not-negotiated",
		"negotiation",
		"caps",
		"pixel format",
		"format",
		"missing plugin",
	}
	networkKeywords = []string{
		"timeout",
		"timed out",
		"connection",
		"unreachable",
		"network",
		"socket",
		"gvcp",
		"gvsp",
		"usb",
		"disconnected",
		"not found",
		"no such device",
		"could not open",
	}
)

// ClassifyMessage categorises an error from its message and debug text.
// Access is checked first since an owned camera also fails to open.
func ClassifyMessage(msg, debug string) ErrorCategory {
	combined := strings.ToLower(msg + " " + debug)
	switch {
	case containsAny(combined, accessKeywords):
		return ErrCategoryAccess
	case containsAny(combined, formatKeywords):
		return ErrCategoryFormat
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

// ClassifyGStreamerError categorises a bus error.
// go-gst's GError does not expose the domain, so this relies on the text.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return ClassifyMessage(gerr.Error(), gerr.DebugString())
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// sdkError wraps a failed pipeline operation. The detail carries the
// category so callers can tell a busy camera from a cable fault.
func sdkError(op string, gerr *gst.GError, fallback error) *mvswrapper.SDKError {
	e := &mvswrapper.SDKError{Vendor: component, Op: op}
	switch {
	case gerr != nil:
		e.Detail = ClassifyGStreamerError(gerr).String() + ": " + gerr.Error()
	case fallback != nil:
		e.Detail = ClassifyMessage(fallback.Error(), "").String() + ": " + fallback.Error()
	}
	return e
}
