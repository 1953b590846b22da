// Package inmemdb provides in-memory repository implementations, used by
// tests and the dev profile.
package inmemdb

import (
	"sync"

	"github.com/kozihub/kozi/core/alog"
	"github.com/kozihub/kozi/core/comment"
	"github.com/kozihub/kozi/core/course"
	"github.com/kozihub/kozi/core/event"
	"github.com/kozihub/kozi/core/group"
	"github.com/kozihub/kozi/core/region"
	"github.com/kozihub/kozi/core/user"
	"github.com/kozihub/kozi/core/venue"
)

type (
	DB struct {
		user    *userTable
		course  *courseTable
		event   *eventTable
		venue   *venueTable
		region  *regionTable
		group   *groupTable
		comment *commentTable
		log     *logTable
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}
	courseTable struct {
		mutex sync.RWMutex
		table map[string]*course.Course
	}
	eventTable struct {
		mutex sync.RWMutex
		table map[string]*event.Event
	}
	venueTable struct {
		mutex sync.RWMutex
		table map[string]*venue.Venue
	}
	regionTable struct {
		mutex sync.RWMutex
		table map[string]*region.Region
	}
	groupTable struct {
		mutex sync.RWMutex
		table map[string]*group.Group
	}
	commentTable struct {
		mutex sync.RWMutex
		table map[string]*comment.Comment
	}
	logTable struct {
		mutex   sync.RWMutex
		entries []alog.Entry
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		course:  &courseTable{table: make(map[string]*course.Course)},
		event:   &eventTable{table: make(map[string]*event.Event)},
		venue:   &venueTable{table: make(map[string]*venue.Venue)},
		region:  &regionTable{table: make(map[string]*region.Region)},
		group:   &groupTable{table: make(map[string]*group.Group)},
		comment: &commentTable{table: make(map[string]*comment.Comment)},
		log:     &logTable{},
	}
	return db, nil
}
