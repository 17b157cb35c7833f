package item

import (
	"context"
	"errors"
	"time"
)

// Event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event describes a committed change to an item.
type Event struct {
	Action    string    `json:"action"`
	OwnerID   string    `json:"owner_id"`
	Item      Item      `json:"item"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher receives item events after the change is stored. A publish
// failure never undoes the change.
type Publisher interface {
	PublishItemEvent(ctx context.Context, ev Event) error
}

// Publishers fans an event out to each publisher in turn. Every publisher
// is tried; the failures are joined.
type Publishers []Publisher

func (ps Publishers) PublishItemEvent(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range ps {
		if err := p.PublishItemEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewEvent builds an event for it stamped with the current time.
func NewEvent(action string, it Item) Event {
	return Event{
		Action:    action,
		OwnerID:   it.OwnerID,
		Item:      it,
		Timestamp: time.Now().UTC(),
	}
}
