// dmclaw - proactive private chat for chat bots
//
// Reaches out to known users in one-on-one conversations, with per-user
// cooldowns, greeting templates and scheduled check-ins.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal"
	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal/configcmd"
	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal/console"
	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal/gateway"
	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal/impression"
	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal/migrate"
	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal/send"
	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal/streams"
	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal/version"
)

func NewDmclawCommand() *cobra.Command {
	short := fmt.Sprintf("%s dmclaw - Proactive private chat v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "dmclaw",
		Short:   short,
		Example: "dmclaw gateway",
	}

	cmd.AddCommand(
		gateway.NewGatewayCommand(),
		console.NewConsoleCommand(),
		send.NewSendCommand(),
		streams.NewStreamsCommand(),
		impression.NewImpressionCommand(),
		configcmd.NewConfigCommand(),
		migrate.NewMigrateCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewDmclawCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
