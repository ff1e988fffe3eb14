package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and create the vector schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := openDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()
		fmt.Println("Migrations applied.")
		return nil
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <source-person-id> <target-person-id>",
	Short: "Merge one person into another",
	Long: `Move every face of the source person to the target person and remove the
source. Pending review suggestions pointing at the source are retargeted.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid source id: %w", err)
		}
		target, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid target id: %w", err)
		}

		deps, err := openDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		res, err := deps.Curator().Merge(cmd.Context(), source, target)
		if err != nil {
			return err
		}
		fmt.Printf("Merged %s into %s: %d faces moved\n", source, res.TargetID, res.FacesMoved)
		return nil
	},
}

var deletePersonCmd = &cobra.Command{
	Use:   "delete-person <person-id>",
	Short: "Delete a person with all of their faces",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid person id: %w", err)
		}

		deps, err := openDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		res, err := deps.Curator().DeletePerson(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted person %s: %d faces, %d points, %d crops\n",
			id, res.FacesDeleted, res.PointsDeleted, res.CropsDeleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, mergeCmd, deletePersonCmd)
}
