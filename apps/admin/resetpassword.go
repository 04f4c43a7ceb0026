package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/user"
)

// resetPassword sets a new password for the user with the given username or email.
// With activate, a deactivated account (e.g. a student back for a new term) is enabled again.
func (cli *commandLine) resetPassword(login, pwd string, activate bool) (user.User, error) {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{core.CleanString(login, true /* lower */)}})
	if err != nil {
		return user.User{}, err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}
	if activate {
		usr.SetActive(true)
	}
	usr.UpdatedAt = time.Now().UTC()
	updated, err := cli.usrRepo.UpdateUser(ctx, usr)
	if err != nil {
		return user.User{}, errors.Wrapf(err, "saving %s", usr.Username)
	}
	return updated, nil
}
