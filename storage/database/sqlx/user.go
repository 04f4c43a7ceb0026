package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/user"
)

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

var userOrderable = []string{"name", "username", "email", "is_active", "created_at", "updated_at", "last_login"}

type userRow struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.Active(),
		Roles:        pq.StringArray(append([]string{}, usr.Roles...)),
		PasswordHash: null.NewBytes(usr.PasswordHash, len(usr.PasswordHash) > 0),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (row userRow) user() user.User {
	isActive := row.IsActive
	return user.User{
		ID:           row.ID,
		Name:         row.Name.String,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     &isActive,
		Roles:        []string(row.Roles),
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo *userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps unique violations to the matching user error
func (repo *userRepository) trapUniqueErr(err error, msg string) error {
	if constraint, ok := uniqueConstraint(err); ok {
		switch constraint {
		case "user_username_key":
			return user.ErrUsernameExists
		case "user_email_key":
			return user.ErrEmailExists
		}
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	check := func(column, value string) (bool, error) {
		if value == "" {
			return false, nil
		}
		var w where
		w.add(column+" = ?", value)
		if len(excludedUsers) > 0 {
			ids := make([]string, 0, len(excludedUsers))
			for _, u := range excludedUsers {
				if validUUID(u.ID) {
					ids = append(ids, u.ID)
				}
			}
			if len(ids) > 0 {
				w.add("id NOT IN (?)", ids)
			}
		}
		query, args, err := build(repo.exec, `SELECT EXISTS(SELECT 1 FROM "user"`+w.String()+`)`, w.args)
		if err != nil {
			return false, err
		}
		var exists bool
		err = repo.exec.GetContext(ctx, &exists, query, args...)
		return exists, err
	}

	exists, err := check("username", username)
	if err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	if exists {
		return user.ErrUsernameExists
	}
	if exists, err = check("email", email); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toUserRow(usr)

	query := repo.exec.Rebind(`INSERT INTO "user" (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.exec.ExecContext(ctx, query,
		row.ID, row.Name, row.Username, row.Email, row.IsActive, row.Roles, row.PasswordHash,
		row.CreatedAt, row.UpdatedAt, row.LastLogin)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "inserting user")
	}
	return row.user(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var w where

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("name ILIKE ? OR username ILIKE ? OR email ILIKE ?", val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			w.add("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role LIKE ANY (?))", likeAny(filter.Roles))
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if filter.IDs != nil {
			ids := make([]string, 0, len(filter.IDs))
			for _, id := range filter.IDs {
				if validUUID(id) {
					ids = append(ids, id)
				}
			}
			if len(ids) == 0 {
				return []user.User{}, nil
			}
			w.add("id IN (?)", ids)
		}
	}

	q := `SELECT ` + userColumns + ` FROM "user"` + w.String() + orderBy(ordering, userOrderable, core.DBOrdering{Field: "created_at"})
	query, args, err := build(repo.exec, q, w.args)
	if err != nil {
		return nil, errors.Wrap(err, "building users query")
	}

	var rows []userRow
	if err = repo.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	if filter.ID != "" {
		if !validUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	} else {
		uname, email := filter.UsernameAndEmail()
		if uname == "" && email == "" {
			return user.User{}, user.ErrNotFound
		}
		w.add("username = ? OR email = ?", uname, email)
	}

	var row userRow
	query := repo.exec.Rebind(`SELECT ` + userColumns + ` FROM "user"` + w.String() + ` LIMIT 1`)
	if err := repo.exec.GetContext(ctx, &row, query, w.args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return row.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	row := toUserRow(usr)

	query := repo.exec.Rebind(`UPDATE "user" SET name = ?, username = ?, email = ?, is_active = ?, roles = ?,
		password_hash = ?, updated_at = ?, last_login = ? WHERE id = ?`)
	res, err := repo.exec.ExecContext(ctx, query,
		row.Name, row.Username, row.Email, row.IsActive, row.Roles,
		row.PasswordHash, row.UpdatedAt, row.LastLogin, row.ID)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr)
	}
	return repo.UpdateUser(ctx, usr)
}

// likeAny turns role prefixes into a LIKE pattern array.
func likeAny(prefixes []string) pq.StringArray {
	patterns := make(pq.StringArray, 0, len(prefixes))
	for _, p := range prefixes {
		patterns = append(patterns, p+"%")
	}
	return patterns
}
