package send

import (
	"strings"

	"github.com/spf13/cobra"
)

func NewSendCommand() *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "send <user-id> [message...]",
		Short: "Send a private message to a user",
		Args:  cobra.MinimumNArgs(1),
		Example: `  dmclaw send 123456
  dmclaw send 123456 "{nickname}, long time no see"
  dmclaw send --platform discord 80351110224678912 hello`,
		RunE: func(_ *cobra.Command, args []string) error {
			return sendCmd(platform, args[0], strings.Join(args[1:], " "))
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Platform to send on (default: general.default_platform)")

	return cmd
}
