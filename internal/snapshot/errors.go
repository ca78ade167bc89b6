package snapshot

import "errors"

var (
	// ErrNotExist is returned by Store.Read when no snapshot is stored for a key.
	ErrNotExist = errors.New("snapshot does not exist")
	// ErrInvalid marks a snapshot that fails the structural validity check.
	ErrInvalid = errors.New("invalid snapshot")
	// ErrBadKey is returned for keys that cannot be used as storage identifiers.
	ErrBadKey = errors.New("invalid issue key")
)
