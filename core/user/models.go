package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/learnspace/core"
)

// Roles
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal}
	TeacherRoles = []string{RoleTeacher}
	StudentRoles = []string{RoleStudent}
	AllRoles     = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner:     30,
		RoleAdminPrincipal: 29,
		RoleAdmin:          21,

		// Teachers: 20 - 11
		RoleTeacher: 11,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	// self-registration only hands out these
	registrationRoles = map[string]string{
		"student": RoleStudent,
		"teacher": RoleTeacher,
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 5)
	all = append(all, AdminRoles...)
	all = append(all, TeacherRoles...)
	all = append(all, StudentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     *bool     `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
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

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

// Active reports whether the account may log in. Users without an explicit flag are active.
func (u User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

// DisplayName returns the name to show in emails and rosters.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

func (u User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u User) IsTeacher() bool {
	return u.RoleStartsWith(RoleTeacher)
}

func (u User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Username, nu.Email)
}

// RegisterUser is the public sign-up payload: a NewUser with a single, non-admin role.
type RegisterUser struct {
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,oneof=student teacher"`
}

func (ru *RegisterUser) Validate(validate *validator.Validate, svc ServiceInterface) error {
	ru.Name = core.CleanString(ru.Name)
	ru.Username = core.CleanString(ru.Username, true /* lower */)
	ru.Email = core.CleanString(ru.Email, true /* lower */)
	ru.Role = core.CleanString(ru.Role, true /* lower */)

	if err := validate.Struct(ru); err != nil {
		return err
	}
	return svc.CheckUniqueness(ru.Username, ru.Email)
}

func (ru RegisterUser) NewUser() NewUser {
	return NewUser{
		Name:            ru.Name,
		Username:        ru.Username,
		Email:           ru.Email,
		Password:        ru.Password,
		PasswordConfirm: ru.PasswordConfirm,
		Roles:           []string{registrationRoles[ru.Role]},
	}
}

// GetFilter selects a single User: by ID, or by username/email.
type GetFilter struct {
	ID              string
	UsernameOrEmail []string // [username, email]; a single value is matched against both
}

// UsernameAndEmail expands UsernameOrEmail: a single value is matched against both.
func (f GetFilter) UsernameAndEmail() (uname, email string) {
	if len(f.UsernameOrEmail) > 0 {
		uname = f.UsernameOrEmail[0]
	}
	if len(f.UsernameOrEmail) > 1 {
		email = f.UsernameOrEmail[1]
	}
	if email == "" {
		email = uname
	} else if uname == "" {
		uname = email
	}
	return uname, email
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
	IDs      []string `query:"id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.IDs == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Match reports whether usr satisfies every set field of the filter.
// Search is a case-insensitive match on one of Name, Username or Email;
// Roles match any role that starts with any of the provided roles.
func (qf *QueryFilter) Match(usr User) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(usr.Name), s) ||
			strings.Contains(usr.Username, s) ||
			strings.Contains(usr.Email, s)) {
			return false
		}
	}
	if len(qf.Roles) > 0 {
		var hasRole bool
		for _, role := range qf.Roles {
			if usr.RoleStartsWith(role) {
				hasRole = true
				break
			}
		}
		if !hasRole {
			return false
		}
	}
	if qf.IsActive != nil && usr.Active() != *qf.IsActive {
		return false
	}
	if qf.IDs != nil && !core.StringInSlice(usr.ID, qf.IDs) {
		return false
	}
	return true
}
