package bridge

import "errors"

var (
	// ErrUnknownAction indicates a command topic whose trailing
	// segment names no known action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrBadPayload indicates a command payload that failed to parse
	// or validate.
	ErrBadPayload = errors.New("bad command payload")

	// ErrSoundUnavailable indicates a sound command on a bridge built
	// without a player.
	ErrSoundUnavailable = errors.New("sound player not configured")

	// ErrLedUnavailable indicates a led command on a bridge built
	// without a panel.
	ErrLedUnavailable = errors.New("led panel not configured")
)
