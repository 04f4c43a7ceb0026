package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/user"
)

var roles = map[string][]string{
	"admin":   user.AllRoles,
	"teacher": {user.RoleTeacher},
	"student": {user.RoleStudent},
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, uname, email, pwd, role string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usrRoles, ok := roles[core.CleanString(role, true /* lower */)]
	if !ok {
		return fmt.Errorf("%q: unknown role", role)
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			Username:  uname,
			Email:     email,
			CreatedAt: now,
		}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	usr.Roles = usrRoles
	usr.UpdatedAt = time.Now().UTC()
	usr.SetActive(true)
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
