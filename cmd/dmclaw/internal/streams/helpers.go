package streams

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal"
)

func listCmd(platform string) error {
	app, closeApp, err := internal.Open(platform, false)
	if err != nil {
		return err
	}
	defer closeApp()

	res := app.Plugin.ListCommand(context.Background())
	fmt.Println(res.Reply)
	return nil
}

func historyCmd(platform, userID string, limit int) error {
	app, closeApp, err := internal.Open(platform, false)
	if err != nil {
		return err
	}
	defer closeApp()

	return printHistory(context.Background(), os.Stdout, app, userID, limit)
}

func printHistory(ctx context.Context, w io.Writer, app *internal.App, userID string, limit int) error {
	platform := app.Config.General.DefaultPlatform
	st, err := app.Store.StreamByUser(ctx, userID, platform)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("no private stream found for user %s on %s", userID, platform)
	}

	msgs, err := app.Store.RecentMessages(ctx, st.ID, limit)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages")
		return nil
	}
	for _, m := range msgs {
		arrow := "<"
		if m.Direction == "out" {
			arrow = ">"
		}
		fmt.Fprintf(w, "%s %s %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), arrow, m.Content)
	}
	return nil
}
