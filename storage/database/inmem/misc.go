package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kozihub/kozi/core/comment"
	"github.com/kozihub/kozi/core/filter"
	"github.com/kozihub/kozi/core/group"
	"github.com/kozihub/kozi/core/region"
	"github.com/kozihub/kozi/core/venue"
)

type venueRepository struct {
	db *venueTable
}

func NewVenueRepository(db *DB) venue.Repository {
	return &venueRepository{db: db.venue}
}

// AddVenue seeds a venue (fixtures, dev profile).
func (db *DB) AddVenue(ven venue.Venue) venue.Venue {
	db.venue.mutex.Lock()
	defer db.venue.mutex.Unlock()
	if ven.ID == "" {
		ven.ID = uuid.New().String()
	}
	db.venue.table[ven.ID] = &ven
	return ven
}

func (repo *venueRepository) GetVenueByID(_ context.Context, id string) (venue.Venue, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ven, ok := repo.db.table[id]; ok {
		return *ven, nil
	}
	return venue.Venue{}, venue.ErrNotFound
}

func (repo *venueRepository) FilterVenues(_ context.Context, q filter.Query) ([]venue.Venue, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var venues []venue.Venue
	for _, ven := range repo.db.table {
		if rg, ok := q["region"].(string); ok && ven.RegionID != rg {
			continue
		}
		if search, ok := q["search"].(string); ok &&
			!strings.Contains(strings.ToLower(ven.Name), strings.ToLower(search)) {
			continue
		}
		venues = append(venues, *ven)
	}
	sort.Slice(venues, func(i, j int) bool { return venues[i].Name < venues[j].Name })
	return venues, nil
}

type regionRepository struct {
	db *regionTable
}

func NewRegionRepository(db *DB) region.Repository {
	return &regionRepository{db: db.region}
}

func (db *DB) AddRegion(reg region.Region) region.Region {
	db.region.mutex.Lock()
	defer db.region.mutex.Unlock()
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	db.region.table[reg.ID] = &reg
	return reg
}

func (repo *regionRepository) GetRegionByID(_ context.Context, id string) (region.Region, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if reg, ok := repo.db.table[id]; ok {
		return *reg, nil
	}
	return region.Region{}, region.ErrNotFound
}

func (repo *regionRepository) QueryAllRegions(_ context.Context) ([]region.Region, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	regions := make([]region.Region, 0, len(repo.db.table))
	for _, reg := range repo.db.table {
		regions = append(regions, *reg)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Name < regions[j].Name })
	return regions, nil
}

type groupRepository struct {
	db *groupTable
}

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db.group}
}

func (db *DB) AddGroup(grp group.Group) group.Group {
	db.group.mutex.Lock()
	defer db.group.mutex.Unlock()
	if grp.ID == "" {
		grp.ID = uuid.New().String()
	}
	db.group.table[grp.ID] = &grp
	return grp
}

func (repo *groupRepository) GetGroupByID(_ context.Context, id string) (group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if grp, ok := repo.db.table[id]; ok {
		return *grp, nil
	}
	return group.Group{}, group.ErrNotFound
}

type commentRepository struct {
	db *commentTable
}

func NewCommentRepository(db *DB) comment.Repository {
	return &commentRepository{db: db.comment}
}

func (repo *commentRepository) CreateComment(_ context.Context, cmt comment.Comment) (comment.Comment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if cmt.ID == "" {
		cmt.ID = uuid.New().String()
	}
	repo.db.table[cmt.ID] = &cmt
	return cmt, nil
}

func (repo *commentRepository) GetCommentByID(_ context.Context, id string) (comment.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cmt, ok := repo.db.table[id]; ok {
		return *cmt, nil
	}
	return comment.Comment{}, comment.ErrNotFound
}

func (repo *commentRepository) QueryCourseComments(_ context.Context, courseID string) ([]comment.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var comments []comment.Comment
	for _, cmt := range repo.db.table {
		if cmt.CourseID == courseID {
			comments = append(comments, *cmt)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}
