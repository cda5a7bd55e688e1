package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/priceloom/priceloom/internal/model"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage synced settings",
	}

	username := &cobra.Command{
		Use:   "username [name]",
		Short: "Show or set the public username",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSettingsUsername,
	}

	cmd.AddCommand(username)

	return cmd
}

func runSettingsUsername(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		defer a.close()
		a.awaitSync()

		settings := a.store.Settings()
		if settings.Username == "" {
			fmt.Println("(not set)")
		} else {
			fmt.Println(settings.Username)
		}

		return nil
	}

	defer a.finish()
	a.awaitSync()

	a.store.SetSettings(model.Settings{Username: args[0]})

	return nil
}
