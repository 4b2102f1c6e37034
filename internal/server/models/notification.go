package models

import "time"

// Notification records a delivery event for an authenticated download.
// Sending the notification content is outside this service.
type Notification struct {
	ID        string
	Type      string
	ToEmail   string
	ShareID   string
	FileID    string
	Delivered bool
	CreatedAt time.Time
}

// NotificationTypeDownload marks a recorded download grant.
const NotificationTypeDownload = "download"
