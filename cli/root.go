package cli

import (
	"io"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/salt/log"
	"github.com/spf13/cobra"

	"github.com/catalystcommunity/wsprobe/config"
)

const configFlag = "config"

// New builds the root command. Configuration is loaded before any
// subcommand runs, from --config when given.
func New() *cobra.Command {
	var cfg config.Config

	cmd := &cobra.Command{
		Use:           "wsprobe <command> [flags]",
		Short:         "Websocket chat endpoint probe",
		Long:          "Send one chat message to a websocket endpoint and classify the reply.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: heredoc.Doc(`
			$ wsprobe probe
			$ wsprobe probe ws://localhost:8083/ws/chat --timeout 10s
			$ wsprobe serve --mode echo
			$ wsprobe config init
		`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			file, err := cmd.Flags().GetString(configFlag)
			if err != nil {
				return err
			}
			loaded, err := config.Load(file)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	cmd.PersistentFlags().StringP(configFlag, "c", "", "Override config file")

	cmd.AddCommand(
		probeCommand(&cfg),
		serveCommand(&cfg),
		configCommand(&cfg),
		versionCommand(),
	)

	return cmd
}

func newLogger(level string, w io.Writer) log.Logger {
	return log.NewLogrus(
		log.LogrusWithLevel(level),
		log.LogrusWithWriter(w),
	)
}
