package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"trip-planner/internal/seed"
)

func importCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import places, hotels, events and paths from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.LoadFile(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := seed.Apply(context.Background(), a.store, a.engine, f)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records (%d already present)\n", sum.Created, sum.Skipped)
			return nil
		},
	}
}
