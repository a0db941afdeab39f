package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"janani-health/internal/aggregate"
	"janani-health/internal/db"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rollup <phone-or-email>",
		Short: "Print the dashboard rollup for one mother",
		Args:  cobra.ExactArgs(1),
		RunE:  runRollup,
	}
	cmd.Flags().String("view", "dashboard", "dashboard, doctor or family")
	RootCmd.AddCommand(cmd)
}

func runRollup(cmd *cobra.Command, args []string) error {
	view, _ := cmd.Flags().GetString("view")
	e, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := e.store.Get(cmd.Context(), args[0])
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("no health record for %s", args[0])
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch view {
	case "dashboard":
		return printJSON(out, aggregate.Dashboard(rec))
	case "doctor":
		return printJSON(out, aggregate.Doctor(rec.History, time.Now()))
	case "family":
		return printJSON(out, aggregate.Family(rec.History, time.Now()))
	}
	return fmt.Errorf("unknown view %q", view)
}
