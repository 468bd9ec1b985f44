package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpfleet/orchestrator/internal/clock"
	"github.com/mcpfleet/orchestrator/internal/config"
	"github.com/mcpfleet/orchestrator/internal/registry"
	"github.com/mcpfleet/orchestrator/pkg/output"
	"github.com/mcpfleet/orchestrator/pkg/state"
)

func init() {
	rootCmd.AddCommand(resetCmd)
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe persisted registry state (plugins, module status, error log)",
	Long: `reset deletes the on-disk registry snapshot under REGISTRY_PATH. It
refuses to run while the orchestrator daemon recorded in the daemon state
file is still running, and asks for
interactive confirmation before deleting anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReset()
	},
}

func runReset() error {
	printer := output.New()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if st, err := state.Load(); err == nil && state.IsRunning(st) {
		return fmt.Errorf("orchestrator is running with pid %d; stop it before resetting the registry", st.PID)
	}

	if !printer.Confirm(fmt.Sprintf("Delete all registry state under %s?", cfg.RegistryPath)) {
		printer.Info("reset cancelled")
		return nil
	}

	reg := registry.New(cfg.RegistryPath, cfg.MaxErrorLogEntries, clock.Real{})
	if err := reg.Reset(); err != nil {
		return fmt.Errorf("resetting registry: %w", err)
	}

	printer.Info("registry state deleted", "path", cfg.RegistryPath)
	return nil
}
