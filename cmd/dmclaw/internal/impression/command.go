package impression

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func NewImpressionCommand() *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "impression <user-id> <value>",
		Short: "Set how favourably dmclaw regards a user",
		Long: `Scheduled check-ins only reach users whose impression is at or above
smart_chat.min_impression_threshold.`,
		Args:    cobra.ExactArgs(2),
		Example: `  dmclaw impression 123456 80`,
		RunE: func(_ *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid impression %q", args[1])
			}
			return impressionCmd(platform, userID, value)
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Platform (default: general.default_platform)")

	return cmd
}
