package cli

import (
	"fmt"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/catalystcommunity/wsprobe/config"
	"github.com/catalystcommunity/wsprobe/internal/report"
	"github.com/catalystcommunity/wsprobe/pkg/statsd"
	"github.com/catalystcommunity/wsprobe/probe"
	v1 "github.com/catalystcommunity/wsprobe/v1"
)

func probeCommand(cfg *config.Config) *cobra.Command {
	var (
		message     string
		timestamp   string
		timeout     time.Duration
		dialTimeout time.Duration
		output      string
	)

	cmd := &cobra.Command{
		Use:   "probe [endpoint]",
		Short: "Send one message and classify the reply",
		Long: heredoc.Doc(`
			Connect to a websocket chat endpoint, send one JSON message
			{"message": ..., "timestamp": ...} and wait for one reply.

			The reply is classified as valid JSON, plain text, or an echo of the
			request behind the "Echo: " marker, which points at a server that
			echoes instead of answering. A timeout of 0 waits forever.

			Exits non-zero when the probe timed out or the transport failed.
		`),
		Example: heredoc.Doc(`
			$ wsprobe probe
			$ wsprobe probe ws://localhost:8083/ws/chat --timeout 0
			$ wsprobe probe -m "ping" --timestamp 2023-04-27T00:00:00Z -o json
		`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if len(args) == 1 {
				c.Endpoint = args[0]
			}
			flags := cmd.Flags()
			if flags.Changed("message") {
				c.Message = message
			}
			if flags.Changed("timestamp") {
				c.Timestamp = timestamp
			}
			if flags.Changed("timeout") {
				c.Timeout = timeout
			}
			if flags.Changed("dial-timeout") {
				c.DialTimeout = dialTimeout
			}
			if flags.Changed("output") {
				c.Output = output
			}

			format, err := report.ParseFormat(c.Output)
			if err != nil {
				return err
			}

			msg := probe.NewMessage(c.Message, time.Now())
			if c.Timestamp != "" {
				msg = probe.Message{Message: c.Message, Timestamp: c.Timestamp}
			}
			if err := msg.Validate(); err != nil {
				return err
			}

			logger := newLogger(c.LogLevel, cmd.ErrOrStderr())

			reporter, err := statsd.Init(logger, c.StatsD)
			if err != nil {
				return fmt.Errorf("init statsd: %w", err)
			}
			defer reporter.Close()

			p := probe.New(
				probe.WithLogger(logger),
				probe.WithDialTimeout(c.DialTimeout),
				probe.WithDialer(&v1.Dialer{MaxMessageBytes: c.MaxMessageBytes}),
			)

			start := time.Now()
			result := p.Probe(cmd.Context(), c.Endpoint, msg, c.Timeout)
			elapsed := time.Since(start)

			outcome := result.Kind().String()
			publishOutcome(reporter.Incr("probe"), result)
			publishOutcome(reporter.Timing("probe.duration", elapsed), result)

			if err := report.NewPrinter(cmd.OutOrStdout(), format).Print(c.Endpoint, msg, result, elapsed); err != nil {
				return err
			}

			if probe.Failed(result) {
				return fmt.Errorf("%w: %s", ErrProbeFailed, outcome)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Chat message text")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "ISO 8601 timestamp sent with the message, with or without a zone (default now)")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "How long to wait for the reply, 0 waits forever (default 10s)")
	cmd.Flags().DurationVar(&dialTimeout, "dial-timeout", 0, "Bound for connecting and sending (default 5s)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json or yaml (default text)")

	return cmd
}

func publishOutcome(m *statsd.Metric, result probe.Result) {
	m = m.Tag("outcome", result.Kind().String())
	if probe.Failed(result) {
		m = m.Failure()
	} else {
		m = m.Success()
	}
	m.Publish()
}
