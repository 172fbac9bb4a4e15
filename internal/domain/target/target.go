package target

import (
	"database/sql"
	"time"
)

// Kind is the type of Telegram destination a target points at.
type Kind string

const (
	KindUser    Kind = "user"
	KindGroup   Kind = "group"
	KindChannel Kind = "channel"
)

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindGroup, KindChannel:
		return true
	}
	return false
}

// Target is a named destination content can be dispatched to.
// ID is the platform identifier (numeric chat id or @username) and is unique.
type Target struct {
	ID          string
	DisplayName string
	Kind        Kind
	CreatedAt   time.Time
}

// ContentItem is a reusable message body from the content pool.
type ContentItem struct {
	ID        int64
	Body      string
	MediaURL  sql.NullString // Set for photo posts; Body is then the caption
	CreatedAt time.Time
}

// HasMedia reports whether the item references a media file.
func (c *ContentItem) HasMedia() bool {
	return c.MediaURL.Valid && c.MediaURL.String != ""
}
