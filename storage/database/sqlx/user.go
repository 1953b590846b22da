package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kozihub/kozi/core/user"
)

type userRow struct {
	ID                        string         `db:"id"`
	Name                      string         `db:"name"`
	Username                  string         `db:"username"`
	Email                     string         `db:"email"`
	Locale                    string         `db:"locale"`
	IsActive                  bool           `db:"is_active"`
	NotificationsOff          bool           `db:"notifications_off"`
	AutomatedNotificationsOff bool           `db:"automated_notifications_off"`
	CopyOwnPosts              bool           `db:"copy_own_posts"`
	Roles                     pq.StringArray `db:"roles"`
	PasswordHash              []byte         `db:"password_hash"`
	CreatedAt                 time.Time      `db:"created_at"`
	UpdatedAt                 time.Time      `db:"updated_at"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:                        r.ID,
		Name:                      r.Name,
		Username:                  r.Username,
		Email:                     r.Email,
		Locale:                    r.Locale,
		IsActive:                  r.IsActive,
		NotificationsOff:          r.NotificationsOff,
		AutomatedNotificationsOff: r.AutomatedNotificationsOff,
		CopyOwnPosts:              r.CopyOwnPosts,
		Roles:                     r.Roles,
		PasswordHash:              r.PasswordHash,
		CreatedAt:                 r.CreatedAt,
		UpdatedAt:                 r.UpdatedAt,
	}
}

const userCols = `id, name, username, email, locale, is_active, notifications_off,
	automated_notifications_off, copy_own_posts, roles, password_hash, created_at, updated_at`

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	excluded := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded = append(excluded, usr.ID)
	}

	check := func(col, val string) (bool, error) {
		if val == "" {
			return false, nil
		}
		var exists bool
		q := `SELECT EXISTS (SELECT 1 FROM "user" WHERE ` + col + ` = $1 AND id != ALL($2))`
		if err := repo.db.GetContext(ctx, &exists, q, val, pq.Array(excluded)); err != nil {
			return false, errors.Wrap(err, "checking "+col+" uniqueness")
		}
		return exists, nil
	}

	if taken, err := check("username", username); err != nil {
		return err
	} else if taken {
		return user.ErrUsernameExists
	}
	if taken, err := check("email", email); err != nil {
		return err
	} else if taken {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `
	INSERT INTO "user" (` + userCols + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := repo.db.ExecContext(ctx, q,
		usr.ID, usr.Name, usr.Username, usr.Email, usr.Locale, usr.IsActive,
		usr.NotificationsOff, usr.AutomatedNotificationsOff, usr.CopyOwnPosts,
		pq.Array(usr.Roles), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	q := `SELECT ` + userCols + ` FROM "user" ORDER BY username`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	q := `SELECT ` + userCols + ` FROM "user" WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	var row userRow
	q := `SELECT ` + userCols + ` FROM "user" WHERE username = $1 OR email = $1`
	if err := repo.db.GetContext(ctx, &row, q, strings.ToLower(username)); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `
	UPDATE "user"
	SET name = $2, email = $3, locale = $4, is_active = $5, notifications_off = $6,
	    automated_notifications_off = $7, copy_own_posts = $8, roles = $9,
	    password_hash = $10, updated_at = $11
	WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		usr.ID, usr.Name, usr.Email, usr.Locale, usr.IsActive, usr.NotificationsOff,
		usr.AutomatedNotificationsOff, usr.CopyOwnPosts, pq.Array(usr.Roles),
		usr.PasswordHash, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}
