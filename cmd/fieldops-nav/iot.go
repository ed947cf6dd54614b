package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"fieldops-nav/internal/state"
)

var (
	triggerOff  bool
	triggerShow bool
	triggerBy   string

	resetScope string
	resetYes   bool
)

var triggerCmd = &cobra.Command{
	Use:   "trigger NAME",
	Short: "Set, clear or show a device trigger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()
		if triggerShow {
			return printJSON(cmd.OutOrStdout(), e.GetTrigger(args[0]))
		}
		t, err := e.SetTrigger(cmd.Context(), args[0], !triggerOff, triggerBy, originCLI())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), t)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear triggers and device counters",
	Long:  "reset clears keyed state. It refuses to run without --yes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return errors.New("reset clears state; add --yes to confirm")
		}
		scope, err := state.ParseScope(resetScope)
		if err != nil {
			return err
		}
		e, err := openEngine(nil, nil)
		if err != nil {
			return err
		}
		defer e.Close()
		return printJSON(cmd.OutOrStdout(), e.Reset(scope, originCLI()))
	},
}

// originCLI names the caller in audit records.
func originCLI() string {
	if h, err := os.Hostname(); err == nil {
		return "cli@" + h
	}
	return "cli"
}

func init() {
	triggerCmd.Flags().BoolVar(&triggerOff, "off", false, "Clear the trigger instead of setting it")
	triggerCmd.Flags().BoolVar(&triggerShow, "show", false, "Only show the trigger")
	triggerCmd.Flags().StringVar(&triggerBy, "by", "cli", "Who sets the trigger")

	resetCmd.Flags().StringVar(&resetScope, "scope", "all", "What to clear: triggers (variables), counters (buttons) or all")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm the reset")
}
