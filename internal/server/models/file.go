package models

import "time"

// File describes server-side metadata for an uploaded object. The bytes
// themselves live in object storage under StorageKey; the server only ever
// hands out short-lived presigned locators for them.
type File struct {
	ID       string
	OwnerUID string
	// DisplayName is the name shown to recipients (originally the uploaded
	// file name).
	DisplayName string
	SizeBytes   int64
	ContentType string
	// StorageKey is the object-storage key of the stored blob.
	StorageKey string
	CreatedAt  time.Time
	// ExpiresAt bounds the share lifetime; grants are refused at or after
	// this instant.
	ExpiresAt time.Time
	// MaxDownloads is the total grant budget; RemainingDownloads counts down
	// from it and never leaves [0, MaxDownloads].
	MaxDownloads       int
	RemainingDownloads int
	// Mode is denormalized from the share row so the grant path can
	// re-validate without a join.
	Mode    ShareMode
	Revoked bool
}

// UploadTask instructs an owner client to upload a file using a presigned URL.
type UploadTask struct {
	FileID string
	// URL is a temporary presigned HTTP URL for the client to PUT the bytes.
	URL string
}
