package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kozihub/kozi/core/course"
	"github.com/kozihub/kozi/core/filter"
)

type courseRepository struct {
	db *courseTable
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if crs.ID == "" {
		crs.ID = uuid.New().String()
	}
	repo.db.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.table[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) FilterCourses(_ context.Context, q filter.Query) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var courses []course.Course
	for _, crs := range repo.db.table {
		if courseMatches(*crs, q) {
			courses = append(courses, *crs)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
	return courses, nil
}

func courseMatches(crs course.Course, q filter.Query) bool {
	if region, ok := q["region"].(string); ok && crs.RegionID != region {
		return false
	}
	if search, ok := q["search"].(string); ok &&
		!strings.Contains(strings.ToLower(crs.Name), strings.ToLower(search)) {
		return false
	}
	if grp, ok := q["group"].(string); ok && !containsStr(crs.GroupIDs, grp) {
		return false
	}
	if internal, ok := q["internal"].(bool); ok && crs.Internal != internal {
		return false
	}
	if cats, ok := q["categories"].([]string); ok {
		for _, cat := range cats {
			if !containsStr(crs.Categories, cat) {
				return false
			}
		}
	}
	return true
}

func containsStr(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
