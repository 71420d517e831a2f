package streams

import (
	"strconv"

	"github.com/spf13/cobra"
)

func NewStreamsCommand() *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:     "streams",
		Aliases: []string{"ls"},
		Short:   "List private streams",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return listCmd(platform)
		},
	}
	cmd.PersistentFlags().StringVarP(&platform, "platform", "p", "", "Platform (default: general.default_platform)")

	var limit int
	history := &cobra.Command{
		Use:   "history <user-id>",
		Short: "Show recent messages in a user's private stream",
		Args:  cobra.ExactArgs(1),
		Example: `  dmclaw streams history 123456
  dmclaw streams history 123456 --limit 10`,
		RunE: func(_ *cobra.Command, args []string) error {
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return err
			}
			return historyCmd(platform, args[0], limit)
		},
	}
	history.Flags().IntVarP(&limit, "limit", "n", 20, "Number of messages to show")

	cmd.AddCommand(history)

	return cmd
}
