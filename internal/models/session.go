package models

import "time"

// SessionRecord is one active device session, kept in the document store.
// The store expires records naturally via TTL; every authenticated request
// pushes Expires forward (rolling expiry).
type SessionRecord struct {
	// ID is the session identifier (UUID).
	ID string `json:"-"`

	// UserID is the account this session belongs to.
	UserID int64 `json:"-"`

	// DeviceID is a random token identifying the device, generated from
	// 32 random bytes at login. Unique per user and device.
	DeviceID string `json:"device_id"`

	// Device is a human-readable device label ("Pixel 8", "Firefox").
	Device string `json:"device"`

	// Provider is the login method used ("local", "facebook").
	Provider string `json:"provider"`

	// LoginDate is when the session was created.
	LoginDate time.Time `json:"login_date"`

	// Expires is when the session lapses unless refreshed.
	Expires time.Time `json:"expires"`
}
