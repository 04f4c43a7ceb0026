package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/learnspace/client"
	"github.com/trezcool/learnspace/core/user"
)

func newLoginCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for the next commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if username == "" {
				var ok bool
				if username, ok = a.ask(ctx, "Username or email: "); !ok {
					return errAborted
				}
			}
			pwd, err := a.askPassword(ctx, "Password: ")
			if err != nil {
				return err
			}

			s, err := a.api.Login(ctx, username, pwd)
			if err != nil {
				return err
			}
			if err = s.Save(a.sessionFile); err != nil {
				return err
			}
			a.printf("Logged in as %s (%s).\n", s.User.DisplayName(), s.Role())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.api.Logout()
			if err := client.DeleteSession(a.sessionFile); err != nil {
				return err
			}
			a.printf("Logged out.\n")
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var data user.RegisterUser
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a student or teacher account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pwd, err := a.askPassword(ctx, "Password: ")
			if err != nil {
				return err
			}
			confirm, err := a.askPassword(ctx, "Confirm password: ")
			if err != nil {
				return err
			}
			data.Password, data.PasswordConfirm = pwd, confirm

			usr, err := a.api.Register(ctx, data)
			if err != nil {
				return err
			}
			a.printf("Account %s created. You can now log in.\n", usr.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&data.Name, "name", "", "full name")
	cmd.Flags().StringVarP(&data.Username, "username", "u", "", "username")
	cmd.Flags().StringVar(&data.Email, "email", "", "email")
	cmd.Flags().StringVar(&data.Role, "role", "student", "student or teacher")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.session(); err != nil {
				return err
			}
			usr, err := a.api.Me(cmd.Context())
			if err != nil {
				return err
			}
			s := &client.Session{User: usr}
			a.printf("%s <%s> (%s)\n", usr.DisplayName(), usr.Email, s.Role())
			return nil
		},
	}
}

var errTeachersOnly = errors.New("only teachers can do that")

func requireTeacher(a *app) (*client.Session, error) {
	s, err := a.session()
	if err != nil {
		return nil, err
	}
	if !s.IsTeacher() {
		return nil, errTeachersOnly
	}
	return s, nil
}
