package sentinel

import "errors"

// Store-boundary facts. Client, grant and session stores return these
// (optionally wrapped) and services translate them into coded domain errors:
//   - ErrNotFound: no such client, grant or session
//   - ErrExpired: grant or session past its expiry
//   - ErrAlreadyUsed: grant code already redeemed
//   - ErrConflict: client id already registered
//   - ErrUnavailable: backing store cannot be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
