package playback

import (
	"strings"

	"github.com/soundcrate/playercore/internal/audio"
	"github.com/soundcrate/playercore/internal/notify"
)

// ErrorClass buckets playback failures for user-facing messaging.
type ErrorClass int

const (
	// ErrorUnknown is any failure the other classes do not cover.
	ErrorUnknown ErrorClass = iota

	// ErrorPermission means the host requires a user gesture before audio
	// may start.
	ErrorPermission

	// ErrorFormat means the source format cannot be played.
	ErrorFormat

	// ErrorNetwork means fetching the stream failed.
	ErrorNetwork

	// ErrorDecode means the stream was fetched but could not be decoded.
	ErrorDecode

	// ErrorTimeout means the source did not become playable in time.
	ErrorTimeout
)

// classifySinkError maps a sink media-error code to an error class.
func classifySinkError(code audio.ErrorCode) ErrorClass {
	switch code {
	case audio.ErrNetwork:
		return ErrorNetwork
	case audio.ErrDecode:
		return ErrorDecode
	case audio.ErrSrcNotSupported:
		return ErrorFormat
	default:
		return ErrorUnknown
	}
}

// classifyPlayError maps a sink Play rejection to an error class by the
// host exception name embedded in the error text.
func classifyPlayError(err error) ErrorClass {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "notallowed") || strings.Contains(msg, "not allowed") ||
		strings.Contains(msg, "gesture"):
		return ErrorPermission
	case strings.Contains(msg, "notsupported") || strings.Contains(msg, "not supported"):
		return ErrorFormat
	case strings.Contains(msg, "network"):
		return ErrorNetwork
	case strings.Contains(msg, "decode"):
		return ErrorDecode
	default:
		return ErrorUnknown
	}
}

// surfaceError raises the notification matching class.
func surfaceError(n notify.Notifier, class ErrorClass) {
	switch class {
	case ErrorPermission:
		n.PermissionRequired()
	case ErrorFormat:
		n.FormatUnsupported()
	case ErrorNetwork:
		n.NetworkError()
	case ErrorDecode:
		n.DecodeError()
	case ErrorTimeout:
		n.LoadTimeout()
	default:
		n.PlaybackError()
	}
}
