package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rauschecker-sugrue-labs/air-download/internal/config"
	"github.com/rauschecker-sugrue-labs/air-download/internal/download"
	"github.com/spf13/cobra"
)

func newProjectsCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List the project IDs available to your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := resolveSettings(cmd, flags)
			if err != nil {
				return err
			}
			manager, err := loggedInManager(cmd.Context(), settings)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(manager.Session().Projects))
			for _, p := range manager.Session().Projects {
				rows = append(rows, []string{strconv.Itoa(p.ID), p.Name})
			}
			fmt.Println("Available projects:")
			fmt.Println(renderTable([]string{"ID", "Name"}, rows))
			return nil
		},
	}
}

func newProfilesCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the available anonymization profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := resolveSettings(cmd, flags)
			if err != nil {
				return err
			}
			manager, err := loggedInManager(cmd.Context(), settings)
			if err != nil {
				return err
			}

			profiles, err := manager.Profiles(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(profiles))
			for _, p := range profiles {
				rows = append(rows, []string{strconv.Itoa(p.ID), p.Name, p.Description})
			}
			fmt.Println("Available anonymization profiles:")
			fmt.Println(renderTable([]string{"ID", "Name", "Description"}, rows))
			return nil
		},
	}
}

func loggedInManager(ctx context.Context, settings *config.Settings) (*download.Manager, error) {
	manager := download.NewManager(settings, printEvent(settings.Verbose))
	if err := manager.Login(ctx); err != nil {
		return nil, err
	}
	return manager, nil
}
