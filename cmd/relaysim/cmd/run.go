package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-relaysim/pkg/logging"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
	"github.com/dd0wney/cluso-relaysim/pkg/simulation"
)

var (
	scriptPath string
	hold       bool
)

var runCmd = &cobra.Command{
	Use:   "run <layout>",
	Short: "Apply a stimulus script or typed commands to a layout",
	Long: `Loads a layout and applies stimuli to it. With --script the stimuli
and their expectations come from a YAML script; otherwise commands are read
one per line from standard input:

  press PB | release PB | source B1 on|off | contact K.a up|down|both|none
  tick [n] | settle [limit] | status | verify | quit

Blank lines and lines starting with # are ignored.

Examples:
  relaysim run station.yaml --script route.yaml --verify-each
  echo "press PB
  settle
  status" | relaysim run station.yaml --journal s.journal`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addSessionFlags(runCmd)
	runCmd.Flags().StringVarP(&scriptPath, "script", "s", "", "YAML stimulus script")
	runCmd.Flags().BoolVar(&hold, "hold", false, "keep serving --metrics-addr after the input ends, until interrupted")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	reg := metrics.NewRegistry()

	var script *simulation.Script
	if scriptPath != "" {
		sc, err := simulation.LoadScriptFile(scriptPath)
		if err != nil {
			return err
		}
		script = sc
	}

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

	out := cmd.OutOrStdout()
	if script != nil {
		err = runScript(sess, script, out)
	} else {
		err = runLines(ctx, sess, cmd.InOrStdin(), out)
	}

	if hold && metricsAddr != "" && err == nil {
		fmt.Fprintf(out, "serving %s, interrupt to stop\n", metricsAddr)
		<-ctx.Done()
	}
	cancel()
	if werr := wait(); werr != nil {
		logger.Error("http server failed", logging.Error(werr))
	}
	return err
}

func runScript(sess *simulation.Session, sc *simulation.Script, out io.Writer) error {
	name := sc.Name
	if name == "" {
		name = "script"
	}
	n, err := sess.Run(sc)
	if err != nil {
		fmt.Fprintf(out, "%s: failed after %d of %d steps\n", name, n, len(sc.Steps))
		return err
	}
	fmt.Fprintf(out, "%s: %d steps passed\n", name, n)
	return nil
}

// runLines applies one command per line until EOF, quit or ctx is done.
// Failed commands are reported and counted, and do not stop the loop.
func runLines(ctx context.Context, sess *simulation.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	failed := 0
	lineNo := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch line {
		case "quit", "exit":
			return summarize(failed)
		case "status":
			printStatus(out, sess.Status())
			continue
		case "verify":
			if err := sess.Verify(); err != nil {
				failed++
				fmt.Fprintf(out, "line %d: %v\n", lineNo, err)
			} else {
				fmt.Fprintln(out, "ok: circuits match enumeration")
			}
			continue
		}

		if err := applyLine(sess, line, out); err != nil {
			failed++
			fmt.Fprintf(out, "line %d: %v\n", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read commands: %w", err)
	}
	return summarize(failed)
}

func applyLine(sess *simulation.Session, line string, out io.Writer) error {
	st, err := simulation.ParseLine(line)
	if err != nil {
		return err
	}
	n, err := sess.Exec(st)
	if err != nil {
		return err
	}
	switch st.Action {
	case simulation.ActionTick:
		fmt.Fprintf(out, "ok: %s (%d moved)\n", st, n)
	case simulation.ActionSettle:
		fmt.Fprintf(out, "ok: %s (%d ticks)\n", st, n)
	default:
		fmt.Fprintf(out, "ok: %s\n", st)
	}
	return nil
}

func summarize(failed int) error {
	if failed > 0 {
		return fmt.Errorf("%d commands failed", failed)
	}
	return nil
}

func printStatus(out io.Writer, st simulation.Status) {
	c := st.Circuits
	fmt.Fprintf(out, "layout %s: %d closed, %d open, %d stimuli\n", st.Layout, c.Closed, c.Open, st.Applied)
	for _, r := range st.Relays {
		fmt.Fprintf(out, "  relay  %-12s %-10s %.2f\n", r.Name, r.State, r.Position)
	}
	for _, sr := range st.Screens {
		fmt.Fprintf(out, "  screen %-12s %-10s %.2f a=%s b=%s\n", sr.Name, sr.Power, sr.Position, sr.ContactA, sr.ContactB)
	}
	for _, lv := range st.Levers {
		fmt.Fprintf(out, "  lever  %-12s %d\n", lv.Name, lv.Position)
	}
	for _, b := range st.Buttons {
		fmt.Fprintf(out, "  button %-12s %s\n", b.Name, word(b.Pressed, "pressed", "released"))
	}
	for _, l := range st.Lamps {
		fmt.Fprintf(out, "  lamp   %-12s %s\n", l.Name, word(l.Lit, "lit", "dark"))
	}
	for _, s := range st.Sources {
		fmt.Fprintf(out, "  source %-12s %s\n", s.Name, word(s.Enabled, "on", "off"))
	}
	for _, closed := range st.Closed {
		fmt.Fprintf(out, "  closed %s\n", closed)
	}
}

func word(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}
