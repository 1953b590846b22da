package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kozihub/kozi/core"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

// Roles
const (
	RoleAdmin     = "admin:"
	RoleModerator = "admin:moderator"
	RoleMember    = "member:"
)

var AllRoles = []string{RoleAdmin, RoleModerator, RoleMember}

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Locale   string `json:"locale"` // BCP 47 tag, e.g. "en", "de"
	IsActive bool   `json:"is_active"`

	// notification preferences
	NotificationsOff          bool `json:"notifications_off"`           // mute everything
	AutomatedNotificationsOff bool `json:"automated_notifications_off"` // mute machine-generated mail only
	CopyOwnPosts              bool `json:"copy_own_posts"`              // mail me my own comments/messages

	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasEmail() bool { return strings.TrimSpace(u.Email) != "" }

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool { return u.RoleStartsWith(RoleAdmin) }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"required,min=3,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Locale          string `json:"locale"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := core.Validate.Struct(nu); err != nil {
		return core.TranslateValidationError(err)
	}
	return svc.checkUniqueness(nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name                      string `json:"name"`
	Email                     string `json:"email" validate:"omitempty,email"`
	Locale                    string `json:"locale"`
	NotificationsOff          *bool  `json:"notifications_off"`
	AutomatedNotificationsOff *bool  `json:"automated_notifications_off"`
	CopyOwnPosts              *bool  `json:"copy_own_posts"`
}

func (uu *UpdateUser) Validate() error {
	uu.Name = core.CleanString(uu.Name)
	uu.Email = core.CleanString(uu.Email, true /* lower */)
	if err := core.Validate.Struct(uu); err != nil {
		return core.TranslateValidationError(err)
	}
	return nil
}

type Repository interface {
	CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
	CreateUser(ctx context.Context, user User) (User, error)
	QueryAllUsers(ctx context.Context) ([]User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
}
