package authz

import "errors"

var (
	// ErrConnection means the store could not be reached or rejected the
	// credentials.
	ErrConnection = errors.New("could not connect to the database")

	// ErrStorage means an operation failed on an established connection.
	ErrStorage = errors.New("storage error")

	// ErrNotAssigned means the user has no explicit entry. Callers treat it
	// as the default level.
	ErrNotAssigned = errors.New("no authorization level assigned")

	// ErrDefaultLevel is returned by Set for the default sentinel, which is
	// represented by the absence of an entry. Use Delete instead.
	ErrDefaultLevel = errors.New("default level cannot be stored")

	// ErrEmptyUserID is returned for an empty user identifier.
	ErrEmptyUserID = errors.New("user id must not be empty")
)
