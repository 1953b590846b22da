package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/kozihub/kozi/core/course"
	"github.com/kozihub/kozi/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Locale:    "en",
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	name, regionID, createdBy string,
	members []course.Member,
) course.Course {
	t.Helper()

	tstamp := time.Now().UTC()
	crs := course.Course{
		Name:      name,
		RegionID:  regionID,
		Members:   members,
		CreatedBy: createdBy,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}
