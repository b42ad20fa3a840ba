// Package analytics defines the events emitted by the shortener and their sinks.
package analytics

import "time"

const (
	TopicURLCreated  = "url.created"
	TopicURLAccessed = "url.accessed"
	TopicURLDeleted  = "url.deleted"
)

// URLCreatedEvent is emitted when a key is allocated.
type URLCreatedEvent struct {
	Key       string    `json:"key"`
	ShortURL  string    `json:"shortUrl"`
	LongURL   string    `json:"longUrl"`
	URLID     int64     `json:"urlId"`
	Custom    bool      `json:"custom"`
	CreatedAt time.Time `json:"createdAt"`
	ClientIP  string    `json:"clientIp,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}

// URLAccessedEvent is emitted for every recorded click.
type URLAccessedEvent struct {
	Key          string    `json:"key"`
	AllocationID int64     `json:"allocationId"`
	LongURL      string    `json:"longUrl"`
	AccessedAt   time.Time `json:"accessedAt"`
	ClientIP     string    `json:"clientIp,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	Referrer     string    `json:"referrer,omitempty"`
}

// URLDeletedEvent is emitted when a key is tombstoned.
type URLDeletedEvent struct {
	Key       string    `json:"key"`
	DeletedAt time.Time `json:"deletedAt"`
}
