package streaming

import "errors"

// ErrAlreadyRun is returned when Run is called more than once on a Session.
var ErrAlreadyRun = errors.New("streaming: session already run")
