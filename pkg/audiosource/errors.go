package audiosource

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per validation rule. They are always returned wrapped
// in a *ConfigError.
var (
	// ErrFileNotFound is returned when the audio file does not exist.
	ErrFileNotFound = errors.New("audiosource: audio file not found")

	// ErrInvalidDuration is returned when the chunk duration is not positive.
	ErrInvalidDuration = errors.New("audiosource: invalid chunk duration")

	// ErrInvalidSampleRate is returned when the configured sample rate is not positive.
	ErrInvalidSampleRate = errors.New("audiosource: invalid sample rate")

	// ErrChunkTooShort is returned when a chunk would hold less than one frame.
	ErrChunkTooShort = errors.New("audiosource: chunk duration shorter than one frame")

	// ErrInvalidWAV is returned when the file cannot be parsed as a PCM WAV container.
	ErrInvalidWAV = errors.New("audiosource: invalid WAV file")

	// ErrSampleRateMismatch is returned when the file rate differs from the configured rate.
	ErrSampleRateMismatch = errors.New("audiosource: sample rate mismatch")

	// ErrUnsupportedBitDepth is returned for anything other than 16-bit samples.
	ErrUnsupportedBitDepth = errors.New("audiosource: only 16-bit PCM WAV files are supported")

	// ErrUnsupportedChannels is returned for anything other than mono audio.
	ErrUnsupportedChannels = errors.New("audiosource: only mono audio is supported")
)

// ConfigError reports a source configuration that failed validation.
type ConfigError struct {
	// Path is the audio file being validated.
	Path string

	// Detail carries values that explain the failure, e.g. "expected 16000, got 8000".
	Detail string

	// Err is one of the sentinel errors above.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v (%s): %s", e.Err, e.Detail, e.Path)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Path)
}

// Unwrap returns the sentinel error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(path string, err error, detail string, args ...any) error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &ConfigError{Path: path, Detail: detail, Err: err}
}
