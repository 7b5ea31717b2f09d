package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-relaysim/pkg/journal"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
)

var replayCmd = &cobra.Command{
	Use:   "replay <layout> <journal>",
	Short: "Re-apply a stimulus journal to a freshly loaded layout",
	Long: `Loads the layout, applies every stimulus recorded in the journal in
order, then verifies the result and prints the status. With --journal the
replayed stimuli are recorded again under a new session.

Examples:
  relaysim replay station.yaml s.journal
  relaysim replay station.yaml s.journal --verify-each`,
	Args: cobra.ExactArgs(2),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	addSessionFlags(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	r, err := journal.Open(args[1])
	if err != nil {
		return err
	}
	defer r.Close()

	cfg, err := sessionConfig(cmd, args[0])
	if err != nil {
		return err
	}
	sess, err := openSession(cfg, logger, metrics.NewRegistry())
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cmd.OutOrStdout()
	n, err := sess.Replay(r)
	fmt.Fprintf(out, "replayed %d stimuli from session %s\n", n, r.Session())
	if err != nil {
		return err
	}
	return verifySession(sess, out, true)
}
