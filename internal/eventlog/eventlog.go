package eventlog

import (
	"context"
	"time"

	"switchyard/internal/constants"
	"switchyard/pkg/models"
)

// Query selects events in log order. Empty slices and zero bounds do not constrain the result;
// all bounds are inclusive.
type Query struct {
	EventTypes    []string
	StreamIDs     []string
	FromTimestamp *time.Time
	ToTimestamp   *time.Time
	FromVersion   int64
	ToVersion     int64
	Offset        int
	Limit         int
}

type Reader interface {
	GetEvents(ctx context.Context, q Query) ([]models.Event, error)
}

type Writer interface {
	// Append records ev and returns it with its log version set. Appending an id that is
	// already recorded returns the stored version.
	Append(ctx context.Context, ev models.Event) (models.Event, error)
}

type Log interface {
	Reader
	Writer
}

func (q Query) normalized() Query {
	if q.Limit <= 0 {
		q.Limit = constants.DefaultLimit
	}
	if q.Limit > constants.MaxLimit {
		q.Limit = constants.MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func (q Query) matches(ev models.Event) bool {
	if len(q.EventTypes) > 0 && !contains(q.EventTypes, ev.Type) {
		return false
	}
	if len(q.StreamIDs) > 0 && !contains(q.StreamIDs, ev.StreamID) {
		return false
	}
	if q.FromTimestamp != nil && ev.Timestamp.Before(*q.FromTimestamp) {
		return false
	}
	if q.ToTimestamp != nil && ev.Timestamp.After(*q.ToTimestamp) {
		return false
	}
	if q.FromVersion > 0 && ev.Version < q.FromVersion {
		return false
	}
	if q.ToVersion > 0 && ev.Version > q.ToVersion {
		return false
	}
	return true
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
