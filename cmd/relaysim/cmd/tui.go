package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-relaysim/pkg/logging"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
	"github.com/dd0wney/cluso-relaysim/pkg/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui <layout>",
	Short: "Interactive relay panel",
	Long: `Opens a terminal panel on a layout. Relays tick every --tick-interval;
stimuli are typed on the Console tab.

Examples:
  relaysim tui station.yaml --tick-interval 200ms`,
	Args: cobra.ExactArgs(1),
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	addSessionFlags(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	// Logs would corrupt the alternate screen
	logger := logging.NewNopLogger()
	reg := metrics.NewRegistry()
	cfg, err := sessionConfig(cmd, args[0])
	if err != nil {
		return err
	}
	sess, err := openSession(cfg, logger, reg)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	wait := startHTTP(ctx, sess, reg, logger, nil)

	p := tea.NewProgram(tui.New(sess, cfg.Interval()), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	cancel()
	wait()
	return err
}
