package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Limmita2/FaseWatch/internal/identity"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair drift between faces and vector points",
	Long: `Run two reconciliation sweeps separated by the orphan grace period
(identity.orphan_grace, 2m by default). Points without a face row are deleted
only when both sweeps saw them orphaned, so photos being recorded while the
command runs are left alone. Stale person ids in point payloads are rewritten
on every sweep.

Examples:
  # Two sweeps, orphan_grace apart
  fwctl reconcile

  # Report only what one sweep finds
  fwctl reconcile --single`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().Bool("single", false, "run one sweep and delete nothing")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	single, _ := cmd.Flags().GetBool("single")
	ctx := cmd.Context()

	deps, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	r := deps.Reconciler()
	rep, err := r.Sweep(ctx)
	if err != nil {
		return err
	}
	printReport("first sweep", rep)
	if single {
		return nil
	}

	grace := r.Grace()
	fmt.Printf("Waiting %s before confirming orphans...\n", grace)
	select {
	case <-time.After(grace):
	case <-ctx.Done():
		return ctx.Err()
	}

	rep, err = r.Sweep(ctx)
	if err != nil {
		return err
	}
	printReport("second sweep", rep)
	return nil
}

func printReport(label string, rep identity.Report) {
	fmt.Printf("%s: %d points, %d faces, %d suspect, %d orphans deleted, %d payloads fixed, %d faces without point\n",
		label, rep.PointsScanned, rep.FacesScanned, rep.SuspectPoints,
		rep.OrphansDeleted, rep.PayloadsFixed, rep.FacesWithoutPoint)
}
