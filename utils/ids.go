package utils

import "github.com/oklog/ulid/v2"

// NewSessionID issues a session id for clients that arrive without one.
// ULIDs sort by creation time, which keeps the sessions table append-friendly.
func NewSessionID() string {
	return ulid.Make().String()
}
