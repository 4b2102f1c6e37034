package models

import "time"

// Session is a short-lived proof-of-verification minted by a successful pin
// or device check. It is single-use: the download-grant call consumes it
// atomically, and a second presentation fails.
//
// Account and public modes never mint sessions; their authorization is
// durable and re-checked on every call instead.
type Session struct {
	// ID doubles as the jti claim of the issued token.
	ID      string
	ShareID string
	// Subject is the verified account uid or device credential id.
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
