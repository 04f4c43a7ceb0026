package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists on a clash with any user not excluded.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User) (User, error)
	}

	ServiceInterface interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Create(nu NewUser) (User, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		QueryByIDs(ids []string) (map[string]User, error)
		ListStudents() ([]User, error)
		GetByID(id string) (User, error)
		GetByUsernameOrEmail(uname string) (User, error)
		SetLastLogin(usr User) (User, error)
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil) // interface compliance check

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	ctx := context.Background()
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking username uniqueness")
		}
		return core.NewFieldError(field, err)
	}
	return nil
}

func (svc *service) Create(nu NewUser) (User, error) {
	now := nowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(context.Background(), usr)
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(context.Background(), filter, ordering)
}

// QueryByIDs returns the users with the given IDs, keyed by ID. Unknown IDs are skipped.
func (svc *service) QueryByIDs(ids []string) (map[string]User, error) {
	res := make(map[string]User, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	users, err := svc.repo.QueryUsers(context.Background(), &QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying users by IDs")
	}
	for _, usr := range users {
		res[usr.ID] = usr
	}
	return res, nil
}

// ListStudents returns every active student, ordered by username.
func (svc *service) ListStudents() ([]User, error) {
	active := true
	return svc.repo.QueryUsers(
		context.Background(),
		&QueryFilter{Roles: StudentRoles, IsActive: &active},
		[]core.DBOrdering{{Field: "username", Ascending: true}},
	)
}

func (svc *service) GetByID(id string) (User, error) {
	return svc.repo.GetUser(context.Background(), GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(uname string) (User, error) {
	return svc.repo.GetUser(context.Background(), GetFilter{UsernameOrEmail: []string{core.CleanString(uname, true /* lower */)}})
}

func (svc *service) SetLastLogin(usr User) (User, error) {
	usr.LastLogin = nowFunc().UTC()
	return svc.repo.UpdateUser(context.Background(), usr)
}
