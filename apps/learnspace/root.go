package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/learnspace/client"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "learnspace",
		Short:         "Work on LearnSpace assignments from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.connect()
		},
	}
	root.PersistentFlags().StringVar(&a.baseURL, "server", a.baseURL, "LearnSpace server URL")
	root.PersistentFlags().StringVar(&a.sessionFile, "session", a.sessionFile, "where the login session is kept")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newRegisterCmd(a),
		newWhoamiCmd(a),
		newAssignmentsCmd(a),
		newWorkCmd(a),
		newSubmissionsCmd(a),
		newRosterCmd(a),
		newGradeCmd(a),
		newStatsCmd(a),
	)

	// every command reports its own errors the same way
	for _, cmd := range root.Commands() {
		run := cmd.RunE
		if run == nil {
			continue
		}
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			if err != nil && err != errAborted {
				a.printf("error: %s\n", describe(err))
				var apiErr *client.APIError
				if !errors.As(err, &apiErr) {
					a.logger.Error(cmd.Name()+" failed", err)
				}
			}
			return err
		}
	}
	return root
}
