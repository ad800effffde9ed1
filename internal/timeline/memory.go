package timeline

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var errTxDone = errors.New("timeline: transaction already finished")

// MemoryRepository keeps timelines in process memory. Writers of one schedule
// are serialized by a per-schedule mutex; a Tx works on a private copy of the
// schedule's items that is swapped in on Commit.
type MemoryRepository struct {
	mu        sync.Mutex
	locks     map[int]*sync.Mutex
	schedules map[int]bool
	items     map[int]Item
	nextID    int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		locks:     make(map[int]*sync.Mutex),
		schedules: make(map[int]bool),
		items:     make(map[int]Item),
	}
}

// PutSchedule registers a schedule and its active flag. Deactivating a
// schedule deactivates its items.
func (r *MemoryRepository) PutSchedule(scheduleID int, active bool) {
	lock := r.scheduleLock(scheduleID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[scheduleID] = active
	if active {
		return
	}
	for id, it := range r.items {
		if it.ScheduleID == scheduleID {
			it.Active = false
			r.items[id] = it
		}
	}
}

// Items returns every item of the schedule, inactive ones included, ordered
// like Tx.ActiveItems.
func (r *MemoryRepository) Items(scheduleID int) []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(scheduleID, func(Item) bool { return true })
}

// ActiveItems returns the committed active items of the schedule.
func (r *MemoryRepository) ActiveItems(scheduleID int) []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(scheduleID, func(it Item) bool { return it.Active })
}

func (r *MemoryRepository) Begin(ctx context.Context, scheduleID int) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lock := r.scheduleLock(scheduleID)
	lock.Lock()

	r.mu.Lock()
	active, ok := r.schedules[scheduleID]
	if !ok || !active {
		r.mu.Unlock()
		lock.Unlock()
		return nil, NotFoundf("schedule %d", scheduleID)
	}
	staged := make(map[int]Item)
	for id, it := range r.items {
		if it.ScheduleID == scheduleID {
			staged[id] = it
		}
	}
	r.mu.Unlock()

	return &memoryTx{repo: r, lock: lock, scheduleID: scheduleID, staged: staged}, nil
}

func (r *MemoryRepository) scheduleLock(scheduleID int) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[scheduleID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[scheduleID] = lock
	}
	return lock
}

// collect must be called with r.mu held.
func (r *MemoryRepository) collect(scheduleID int, keep func(Item) bool) []Item {
	out := make([]Item, 0)
	for _, it := range r.items {
		if it.ScheduleID == scheduleID && keep(it) {
			out = append(out, it)
		}
	}
	sortItems(out)
	return out
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
}

type memoryTx struct {
	repo       *MemoryRepository
	lock       *sync.Mutex
	scheduleID int
	staged     map[int]Item
	done       bool
}

func (t *memoryTx) ActiveItems(ctx context.Context, excludeID int) ([]Item, error) {
	if t.done {
		return nil, errTxDone
	}
	out := make([]Item, 0, len(t.staged))
	for id, it := range t.staged {
		if it.Active && id != excludeID {
			out = append(out, it)
		}
	}
	sortItems(out)
	return out, nil
}

func (t *memoryTx) Item(ctx context.Context, itemID int) (Item, error) {
	if t.done {
		return Item{}, errTxDone
	}
	it, ok := t.staged[itemID]
	if !ok {
		return Item{}, NotFoundf("item %d in schedule %d", itemID, t.scheduleID)
	}
	return it, nil
}

func (t *memoryTx) Adjust(ctx context.Context, adj Adjustment) error {
	it, err := t.Item(ctx, adj.ItemID)
	if err != nil {
		return err
	}
	it.Start, it.Duration = adj.NewStart, adj.NewDuration
	t.staged[it.ID] = it
	return nil
}

func (t *memoryTx) Deactivate(ctx context.Context, itemID int) error {
	it, err := t.Item(ctx, itemID)
	if err != nil {
		return err
	}
	it.Active = false
	t.staged[it.ID] = it
	return nil
}

func (t *memoryTx) Insert(ctx context.Context, it Item) (Item, error) {
	if t.done {
		return Item{}, errTxDone
	}
	t.repo.mu.Lock()
	t.repo.nextID++
	it.ID = t.repo.nextID
	t.repo.mu.Unlock()

	it.ScheduleID = t.scheduleID
	t.staged[it.ID] = it
	return it, nil
}

func (t *memoryTx) Update(ctx context.Context, it Item) (Item, error) {
	if _, err := t.Item(ctx, it.ID); err != nil {
		return Item{}, err
	}
	it.ScheduleID = t.scheduleID
	t.staged[it.ID] = it
	return it, nil
}

func (t *memoryTx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.repo.mu.Lock()
	for id, it := range t.staged {
		t.repo.items[id] = it
	}
	t.repo.mu.Unlock()
	t.finish()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return errTxDone
	}
	t.finish()
	return nil
}

func (t *memoryTx) finish() {
	t.done = true
	t.staged = nil
	t.lock.Unlock()
}
