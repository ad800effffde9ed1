package timeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Repository opens transactional scopes over one schedule's timeline.
//
// Begin must serialize writers of the same schedule until the returned Tx is
// committed or rolled back, and must return ErrNotFound when the schedule is
// missing or inactive. Different schedules must not block each other.
type Repository interface {
	Begin(ctx context.Context, scheduleID int) (Tx, error)
}

// Tx is a transactional scope bound to a single schedule. Nothing written
// through it is visible to other readers before Commit.
type Tx interface {
	// ActiveItems returns the schedule's active items ordered by start time,
	// order and id. excludeID is skipped when non-zero.
	ActiveItems(ctx context.Context, excludeID int) ([]Item, error)
	// Item returns an item of this schedule, active or not, or ErrNotFound.
	Item(ctx context.Context, itemID int) (Item, error)
	Adjust(ctx context.Context, adj Adjustment) error
	Deactivate(ctx context.Context, itemID int) error
	Insert(ctx context.Context, it Item) (Item, error)
	Update(ctx context.Context, it Item) (Item, error)
	Commit() error
	Rollback() error
}

// VideoChecker confirms that a video belongs to the schedule's tenant and is active.
type VideoChecker interface {
	VideoUsable(ctx context.Context, scheduleID, videoID int) (bool, error)
}

// Candidate is the item a caller wants on the timeline. ItemID is zero for
// an insert and names the item being replaced for an update.
type Candidate struct {
	ItemID  int
	VideoID int
	Order   int
	Slot
}

// Validate rejects candidates before any storage is touched.
func (c Candidate) Validate() error {
	if c.ItemID < 0 {
		return invalid("item_id", "must be positive")
	}
	if c.VideoID <= 0 {
		return invalid("video_id", "is required")
	}
	if !c.Start.Valid() {
		return invalid("start_time", fmt.Sprintf("%d seconds is outside a day", int(c.Start)))
	}
	if c.Duration < 1 {
		return invalid("duration", "must be at least 1 second")
	}
	return nil
}

// Placement is the persisted candidate plus every change made to make room for it.
type Placement struct {
	Item     Item
	Adjusted []Adjustment
	Removed  []int
}

// EventKind tells observers what happened to a timeline.
type EventKind string

const (
	EventPlaced  EventKind = "placed"
	EventRemoved EventKind = "removed"
)

// Event describes a committed timeline change.
type Event struct {
	Kind       EventKind
	ScheduleID int
	ItemID     int
	Update     bool
	Plan       Plan
}

// Observer is told about committed changes only. It must not block for long.
type Observer interface {
	TimelineChanged(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) TimelineChanged(ctx context.Context, ev Event) { f(ctx, ev) }

// Coordinator applies resolution plans and candidate writes as one atomic unit.
type Coordinator struct {
	repo      Repository
	videos    VideoChecker
	observers []Observer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithVideoChecker validates video references before a placement.
func WithVideoChecker(v VideoChecker) Option {
	return func(c *Coordinator) { c.videos = v }
}

// WithObserver registers an observer for committed changes.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, o) }
}

func NewCoordinator(repo Repository, opts ...Option) *Coordinator {
	c := &Coordinator{repo: repo}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlaceItem inserts (ItemID == 0) or updates the candidate, trimming or
// deactivating every other active item it collides with. Either all of it is
// committed or none of it is.
func (c *Coordinator) PlaceItem(ctx context.Context, scheduleID int, cand Candidate) (_ Placement, err error) {
	if err := c.checkCandidate(ctx, scheduleID, cand); err != nil {
		return Placement{}, err
	}

	tx, err := c.repo.Begin(ctx, scheduleID)
	if err != nil {
		return Placement{}, storageFailure("begin", err)
	}
	defer rollbackOnError(tx, scheduleID, &err)

	plan, err := c.plan(ctx, tx, cand)
	if err != nil {
		return Placement{}, err
	}

	for _, adj := range plan.Adjusted {
		if err = tx.Adjust(ctx, adj); err != nil {
			return Placement{}, storageFailure("adjust item", err)
		}
	}
	for _, id := range plan.Removed {
		if err = tx.Deactivate(ctx, id); err != nil {
			return Placement{}, storageFailure("deactivate item", err)
		}
	}

	item := Item{
		ID:         cand.ItemID,
		ScheduleID: scheduleID,
		VideoID:    cand.VideoID,
		Order:      cand.Order,
		Active:     true,
		Slot:       cand.Slot,
	}
	if cand.ItemID == 0 {
		item, err = tx.Insert(ctx, item)
	} else {
		item, err = tx.Update(ctx, item)
	}
	if err != nil {
		return Placement{}, storageFailure("write candidate", err)
	}

	if err = tx.Commit(); err != nil {
		return Placement{}, storageFailure("commit", err)
	}

	log.Info().
		Int("schedule_id", scheduleID).
		Int("item_id", item.ID).
		Bool("update", cand.ItemID != 0).
		Int("adjusted", len(plan.Adjusted)).
		Int("removed", len(plan.Removed)).
		Msg("timeline item placed")

	c.notify(ctx, Event{Kind: EventPlaced, ScheduleID: scheduleID, ItemID: item.ID, Update: cand.ItemID != 0, Plan: plan})

	return Placement{Item: item, Adjusted: plan.Adjusted, Removed: plan.Removed}, nil
}

// Preview returns the plan PlaceItem would apply without writing anything.
func (c *Coordinator) Preview(ctx context.Context, scheduleID int, cand Candidate) (Plan, error) {
	if err := c.checkCandidate(ctx, scheduleID, cand); err != nil {
		return Plan{}, err
	}
	tx, err := c.repo.Begin(ctx, scheduleID)
	if err != nil {
		return Plan{}, storageFailure("begin", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Debug().Err(rbErr).Int("schedule_id", scheduleID).Msg("preview rollback")
		}
	}()
	return c.plan(ctx, tx, cand)
}

// RemoveItem deactivates one item. Removal never creates a conflict, so no
// resolution runs.
func (c *Coordinator) RemoveItem(ctx context.Context, scheduleID, itemID int) (err error) {
	tx, err := c.repo.Begin(ctx, scheduleID)
	if err != nil {
		return storageFailure("begin", err)
	}
	defer rollbackOnError(tx, scheduleID, &err)

	current, err := tx.Item(ctx, itemID)
	if err != nil {
		return storageFailure("load item", err)
	}
	if !current.Active {
		err = NotFoundf("item %d is inactive", itemID)
		return err
	}
	if err = tx.Deactivate(ctx, itemID); err != nil {
		return storageFailure("deactivate item", err)
	}
	if err = tx.Commit(); err != nil {
		return storageFailure("commit", err)
	}

	log.Info().Int("schedule_id", scheduleID).Int("item_id", itemID).Msg("timeline item removed")
	c.notify(ctx, Event{Kind: EventRemoved, ScheduleID: scheduleID, ItemID: itemID})
	return nil
}

func (c *Coordinator) checkCandidate(ctx context.Context, scheduleID int, cand Candidate) error {
	if err := cand.Validate(); err != nil {
		return err
	}
	if c.videos == nil {
		return nil
	}
	ok, err := c.videos.VideoUsable(ctx, scheduleID, cand.VideoID)
	if err != nil {
		return storageFailure("check video", err)
	}
	if !ok {
		return invalid("video_id", fmt.Sprintf("video %d is not available to this schedule", cand.VideoID))
	}
	return nil
}

// plan loads the snapshot inside tx and resolves the candidate against it.
func (c *Coordinator) plan(ctx context.Context, tx Tx, cand Candidate) (Plan, error) {
	if cand.ItemID != 0 {
		current, err := tx.Item(ctx, cand.ItemID)
		if err != nil {
			return Plan{}, storageFailure("load item", err)
		}
		if !current.Active {
			return Plan{}, NotFoundf("item %d is inactive", cand.ItemID)
		}
	}
	existing, err := tx.ActiveItems(ctx, cand.ItemID)
	if err != nil {
		return Plan{}, storageFailure("load active items", err)
	}
	return Resolve(cand.Slot, existing), nil
}

func (c *Coordinator) notify(ctx context.Context, ev Event) {
	for _, o := range c.observers {
		o.TimelineChanged(ctx, ev)
	}
}

func rollbackOnError(tx Tx, scheduleID int, err *error) {
	if *err == nil {
		return
	}
	if rbErr := tx.Rollback(); rbErr != nil {
		log.Debug().Err(rbErr).Int("schedule_id", scheduleID).Msg("rollback after failure")
	}
}
