// Package notify defines the user-facing notification collaborator.
// playercore raises messages through it but owns none of the rendering;
// the embedding application plugs in its toast/snackbar implementation.
package notify

import "github.com/rs/zerolog/log"

// Notifier surfaces user-facing playback messages.
type Notifier interface {
	// LoginRequired tells the user playback needs an authenticated session.
	LoginRequired()

	// InvalidAudio tells the user the track has no usable audio reference.
	InvalidAudio()

	// PermissionRequired tells the user the host needs an interaction
	// gesture before audio may start.
	PermissionRequired()

	// FormatUnsupported tells the user the audio format cannot be played.
	FormatUnsupported()

	// NetworkError tells the user playback failed while fetching the
	// stream over the network.
	NetworkError()

	// DecodeError tells the user the stream was fetched but could not be
	// decoded.
	DecodeError()

	// LoadTimeout tells the user the stream did not become playable in time.
	LoadTimeout()

	// PlaybackError surfaces an unclassified playback failure.
	PlaybackError()
}

// LogNotifier is a fallback Notifier that writes messages to the log.
// Useful for headless hosts and as a default before the UI is wired.
type LogNotifier struct{}

func (LogNotifier) LoginRequired() {
	log.Warn().Msg("Playback requires a logged-in session")
}

func (LogNotifier) InvalidAudio() {
	log.Warn().Msg("Track has no playable audio URL")
}

func (LogNotifier) PermissionRequired() {
	log.Warn().Msg("Audio output requires a user gesture")
}

func (LogNotifier) FormatUnsupported() {
	log.Warn().Msg("Audio format not supported")
}

func (LogNotifier) NetworkError() {
	log.Warn().Msg("Network error while loading audio")
}

func (LogNotifier) DecodeError() {
	log.Warn().Msg("Audio stream could not be decoded")
}

func (LogNotifier) LoadTimeout() {
	log.Warn().Msg("Audio did not become playable in time")
}

func (LogNotifier) PlaybackError() {
	log.Warn().Msg("Playback failed")
}
