package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kozihub/kozi/core/event"
	"github.com/kozihub/kozi/core/filter"
)

type eventRepository struct {
	db *eventTable
}

func NewEventRepository(db *DB) event.Repository {
	return &eventRepository{db: db.event}
}

func (repo *eventRepository) CreateEvent(_ context.Context, evt event.Event) (event.Event, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	repo.db.table[evt.ID] = &evt
	return evt, nil
}

func (repo *eventRepository) GetEventByID(_ context.Context, id string) (event.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if evt, ok := repo.db.table[id]; ok {
		return *evt, nil
	}
	return event.Event{}, event.ErrNotFound
}

func (repo *eventRepository) UpdateEvent(_ context.Context, evt event.Event) (event.Event, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[evt.ID]; !ok {
		return event.Event{}, event.ErrNotFound
	}
	repo.db.table[evt.ID] = &evt
	return evt, nil
}

func (repo *eventRepository) FilterEvents(_ context.Context, q filter.Query) ([]event.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var events []event.Event
	for _, evt := range repo.db.table {
		if eventMatches(*evt, q) {
			events = append(events, *evt)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

func eventMatches(evt event.Event, q filter.Query) bool {
	if region, ok := q["region"].(string); ok && evt.RegionID != region {
		return false
	}
	if courseID, ok := q["course"].(string); ok && (!evt.CourseID.Valid || evt.CourseID.String != courseID) {
		return false
	}
	if venueID, ok := q["venue"].(string); ok && (!evt.VenueID.Valid || evt.VenueID.String != venueID) {
		return false
	}
	if internal, ok := q["internal"].(bool); ok && evt.Internal != internal {
		return false
	}
	if cats, ok := q["categories"].([]string); ok {
		for _, cat := range cats {
			if !containsStr(evt.Categories, cat) {
				return false
			}
		}
	}
	if after, ok := q["after"].(time.Time); ok && evt.Start.Before(after) {
		return false
	}
	if before, ok := q["before"].(time.Time); ok && !evt.Start.Before(before) {
		return false
	}
	if _, ok := q["upcoming"].(bool); ok && evt.End.Before(time.Now()) {
		return false
	}
	return true
}
