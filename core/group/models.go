package group

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("group not found")

// Group is an organization running courses together (a collective, a
// hackerspace, a school). Members are notified when a course is created
// under their group.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Short     string   `json:"short"`
	MemberIDs []string `json:"member_ids"`
}

func (g *Group) HasMember(userID string) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type Repository interface {
	GetGroupByID(ctx context.Context, id string) (Group, error)
}
