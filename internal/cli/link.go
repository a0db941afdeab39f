package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "link <phone> <email>",
		Short: "Attach a dashboard email to a phone number's record",
		Args:  cobra.ExactArgs(2),
		RunE:  runLink,
	})
}

func runLink(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.store.LinkEmail(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "linked %s to %s\n", args[1], args[0])
	return nil
}
