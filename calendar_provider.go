package main

import (
	"context"
	"errors"
	"time"
)

// ErrSyncTokenExpired is returned by a CalendarFeed when the sync token it was
// given is no longer accepted and a full resync is required.
var ErrSyncTokenExpired = errors.New("sync token expired")

const (
	StatusConfirmed = "confirmed"
	StatusTentative = "tentative"
	StatusCancelled = "cancelled"
)

// CalendarFeed is a read-only, paginated source of raw calendar events.
type CalendarFeed interface {
	ListEvents(ctx context.Context, calendarID string, req FeedRequest) (*FeedPage, error)
}

// FeedRequest selects either a full range scan (SyncToken empty) or an
// incremental fetch. PageToken advances within either mode.
type FeedRequest struct {
	SyncToken  string
	PageToken  string
	TimeMin    time.Time
	TimeMax    time.Time
	MaxResults int64
	// OrderByStartTime cannot be combined with incremental fetches.
	OrderByStartTime bool
}

type FeedPage struct {
	Items         []*RawEvent
	NextPageToken string
	NextSyncToken string
}

// EventTime holds the textual start or end of an event exactly as the feed
// sent it. Exactly one of DateTime (RFC 3339 with offset) or Date
// (YYYY-MM-DD, whole-day) is set for live events; removed events may carry
// neither.
type EventTime struct {
	DateTime string
	Date     string
}

func (t EventTime) IsZero() bool {
	return t.DateTime == "" && t.Date == ""
}

type RawEvent struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       EventTime
	End         EventTime
	Status      string
}
