package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"janani-health/internal/app"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "call <phone>",
		Short: "Ring a mother back through the greeting flow",
		Args:  cobra.ExactArgs(1),
		RunE:  runCall,
	})
}

func runCall(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	caller, err := app.NewCaller(e.cfg)
	if err != nil {
		return err
	}
	sid, err := caller.CallBack(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	e.log.Infow("call placed", "phone", args[0], "callSid", sid)
	fmt.Fprintln(cmd.OutOrStdout(), sid)
	return nil
}
