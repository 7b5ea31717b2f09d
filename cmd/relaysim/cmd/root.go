package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-relaysim/pkg/logging"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
	"github.com/dd0wney/cluso-relaysim/pkg/simulation"
)

var (
	// Global flags
	logLevel   string
	configPath string

	// Session flags shared by the subcommands that drive a layout
	journalPath  string
	settleLimit  int
	tickInterval time.Duration
	verifyEach   bool
	metricsAddr  string
)

var rootCmd = &cobra.Command{
	Use:   "relaysim",
	Short: "Relay interlocking circuit simulator",
	Long: `Simulates relay-contact circuits: power sources, contacts, relays,
buttons and lamps wired by cables. Layouts are YAML documents.

Examples:
  relaysim verify station.yaml                       # Compare engine with enumeration
  relaysim run station.yaml --script route.yaml      # Run a scripted scenario
  relaysim run station.yaml --journal s.journal      # Type stimuli, journal them
  relaysim replay station.yaml s.journal             # Re-apply a journal
  relaysim bridge station.yaml --listen tcp://*:9190 # Accept remote stimuli
  relaysim tui station.yaml                          # Interactive panel`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logging.EnvLevel("warn"),
		"log level: debug, info, warn or error (env LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"YAML session config; flags given on the command line override it")
}

// addSessionFlags registers the flags of commands that open a session
func addSessionFlags(c *cobra.Command) {
	c.Flags().StringVarP(&journalPath, "journal", "j", "", "record stimuli to this journal file")
	c.Flags().IntVar(&settleLimit, "settle-limit", simulation.DefaultSettleLimit, "tick limit of a settle without a count")
	c.Flags().DurationVar(&tickInterval, "tick-interval", simulation.DefaultTickInterval, "wall clock time between ticks of a live session")
	c.Flags().BoolVar(&verifyEach, "verify-each", false, "compare the engine with the enumeration after every stimulus")
	c.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
}

func newLogger() (logging.Logger, error) {
	l, err := logging.New(os.Stderr, logLevel)
	if err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	return l, nil
}

// sessionConfig merges --config with the session flags of c
func sessionConfig(c *cobra.Command, layoutPath string) (simulation.Config, error) {
	cfg := simulation.Config{
		Journal:        journalPath,
		SettleLimit:    settleLimit,
		TickInterval:   tickInterval,
		VerifyEachStep: verifyEach,
	}
	if configPath != "" {
		file, err := simulation.LoadConfigFile(configPath)
		if err != nil {
			return simulation.Config{}, err
		}
		flags := c.Flags()
		if !flags.Changed("journal") {
			cfg.Journal = file.Journal
		}
		if !flags.Changed("settle-limit") && file.SettleLimit != 0 {
			cfg.SettleLimit = file.SettleLimit
		}
		if !flags.Changed("tick-interval") && file.TickInterval != 0 {
			cfg.TickInterval = file.TickInterval
		}
		if !flags.Changed("verify-each") {
			cfg.VerifyEachStep = file.VerifyEachStep
		}
	}
	cfg.Layout = layoutPath
	return cfg, cfg.Validate()
}

func openSession(cfg simulation.Config, logger logging.Logger, reg *metrics.Registry) (*simulation.Session, error) {
	return simulation.Open(cfg,
		simulation.WithLogger(logger),
		simulation.WithMetrics(reg))
}

// signalContext is cancelled by SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
