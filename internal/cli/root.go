// Package cli implements the jananictl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"janani-health/internal/app"
	"janani-health/internal/config"
	"janani-health/internal/db"
)

var configDir string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "jananictl",
	Short:         "Operate the Janani maternal health service",
	Long:          "Run summary jobs, inspect a mother's health rollup and place call-backs against the configured store and providers.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "Directory holding the .env file")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

type env struct {
	cfg   config.Config
	log   *zap.SugaredLogger
	store db.Store
}

func (e *env) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
	_ = e.log.Sync()
}

// setup loads configuration and, when withStore is set, opens the store.
func setup(ctx context.Context, withStore bool) (*env, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	log, err := config.NewLogger(cfg.LogDir, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	e := &env{cfg: cfg, log: log}
	if withStore {
		store, _, err := app.OpenStore(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		e.store = store
	}
	return e, nil
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
