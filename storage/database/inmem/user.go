package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.table {
		if excluded[usr.ID] {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	usr.ID = uuid.New().String()
	usr.Roles = append([]string{}, usr.Roles...)
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0, len(repo.db.table))
	for _, usr := range repo.db.table {
		if filter.Match(*usr) {
			users = append(users, *usr)
		}
	}

	sortBy(len(users), ordering, core.DBOrdering{Field: "created_at"},
		func(i int, field string) interface{} {
			switch field {
			case "name":
				return users[i].Name
			case "username":
				return users[i].Username
			case "email":
				return users[i].Email
			case "is_active":
				return users[i].Active()
			case "created_at":
				return users[i].CreatedAt
			case "updated_at":
				return users[i].UpdatedAt
			case "last_login":
				return users[i].LastLogin
			}
			return nil
		},
		func(i, j int) { users[i], users[j] = users[j], users[i] },
	)
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.table[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}

	uname, email := filter.UsernameAndEmail()
	if uname == "" && email == "" {
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.table {
		if (uname != "" && usr.Username == uname) || (email != "" && usr.Email == email) {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.Roles = append([]string{}, usr.Roles...)
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr)
	}
	return repo.UpdateUser(ctx, usr)
}
