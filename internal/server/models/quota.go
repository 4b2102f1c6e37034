package models

// Quota tracks an owner's consumed bytes against a ceiling. It is mutated
// additively when an upload is admitted and compensated if the upload aborts.
type Quota struct {
	OwnerUID     string
	UsedBytes    int64
	CeilingBytes int64
}
