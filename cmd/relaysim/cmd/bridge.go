package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-relaysim/pkg/bridge"
	"github.com/dd0wney/cluso-relaysim/pkg/logging"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
	"github.com/dd0wney/cluso-relaysim/pkg/simulation"
)

var listenAddr string

var bridgeCmd = &cobra.Command{
	Use:   "bridge <layout>",
	Short: "Run a layout live and accept stimuli from other processes",
	Long: `Loads a layout, ticks it every --tick-interval and applies stimuli
pushed to the --listen address as JSON, e.g.

  {"action":"press","target":"PB"}
  {"action":"contact","target":"K.a","up":true}

Use "relaysim send" to push stimuli from a shell.

Examples:
  relaysim bridge station.yaml --listen tcp://*:9190 --metrics-addr :9100`,
	Args: cobra.ExactArgs(1),
	RunE: runBridge,
}

var sendCmd = &cobra.Command{
	Use:   "send <addr> <command>...",
	Short: "Push one stimulus to a running bridge",
	Long: `Parses a command in the line form accepted by "relaysim run" and
pushes it to a bridge.

Examples:
  relaysim send tcp://127.0.0.1:9190 press PB
  relaysim send tcp://127.0.0.1:9190 source B1 off`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	addSessionFlags(bridgeCmd)
	bridgeCmd.Flags().StringVarP(&listenAddr, "listen", "l", "tcp://127.0.0.1:9190", "PULL socket address")

	rootCmd.AddCommand(sendCmd)
}

func runBridge(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
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

	recv, err := bridge.Listen(listenAddr, bridge.WithLogger(logger), bridge.WithMetrics(reg))
	if err != nil {
		return err
	}
	defer recv.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	wait := startHTTP(ctx, sess, reg, logger, recv.Listening)

	fmt.Fprintf(cmd.OutOrStdout(), "bridge listening on %s, interrupt to stop\n", listenAddr)
	go tickLoop(ctx, sess, cfg.Interval(), logger)

	err = bridge.Serve(ctx, recv, sess.Apply)
	cancel()
	if werr := wait(); werr != nil {
		logger.Error("http server failed", logging.Error(werr))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// tickLoop advances the relays on a wall clock until ctx is done
func tickLoop(ctx context.Context, sess *simulation.Session, interval time.Duration, logger logging.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := sess.Tick(); err != nil {
				logger.Error("tick failed", logging.Error(err))
			}
		}
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	st, err := simulation.ParseLine(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	s, err := bridge.Dial(args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Send(st); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", st)
	return nil
}
