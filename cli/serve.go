package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/catalystcommunity/wsprobe/config"
	"github.com/catalystcommunity/wsprobe/internal/chatserver"
	v1 "github.com/catalystcommunity/wsprobe/v1"
)

const shutdownTimeout = 5 * time.Second

func serveCommand(cfg *config.Config) *cobra.Command {
	var (
		addr  string
		path  string
		mode  string
		reply string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a stand-in chat endpoint",
		Long: heredoc.Docf(`
			Serve a websocket chat endpoint that answers in one of these modes:
			%s.

			Useful as a known target when checking what probe reports.
		`, modeList()),
		Example: heredoc.Doc(`
			$ wsprobe serve
			$ wsprobe serve --mode json --reply "I am fine"
			$ wsprobe serve --addr :9000 --path /ws --mode silent
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := cfg.Server
			flags := cmd.Flags()
			if flags.Changed("addr") {
				sc.Addr = addr
			}
			if flags.Changed("path") {
				sc.Path = path
			}
			if flags.Changed("mode") {
				sc.Mode = chatserver.Mode(mode)
			}
			if flags.Changed("reply") {
				sc.Reply = reply
			}

			logger := newLogger(cfg.LogLevel, cmd.ErrOrStderr())

			handler, err := chatserver.Handler(sc.Config, logger)
			if err != nil {
				return err
			}

			srv := v1.NewServer(sc.Addr, sc.Path, handler)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()
			logger.Info("chat server listening", "addr", sc.Addr, "path", sc.Path, "mode", string(sc.Mode))

			select {
			case err := <-errCh:
				return fmt.Errorf("serve: %w", err)
			case <-cmd.Context().Done():
			}

			logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :8083)")
	cmd.Flags().StringVar(&path, "path", "", "Websocket path (default /ws/chat)")
	cmd.Flags().StringVar(&mode, "mode", "", "Reply mode (default echo)")
	cmd.Flags().StringVar(&reply, "reply", "", "Reply text for json and text modes")

	return cmd
}

func modeList() string {
	var s string
	for i, m := range chatserver.Modes {
		if i > 0 {
			s += ", "
		}
		s += string(m)
	}
	return s
}
