package send

import (
	"context"
	"errors"
	"fmt"

	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal"
	"github.com/tinyland-inc/dmclaw/pkg/proactive"
)

func sendCmd(platform, userID, message string) error {
	app, closeApp, err := internal.Open(platform, true)
	if err != nil {
		return err
	}
	defer closeApp()

	return printResult(send(context.Background(), app, userID, message))
}

func send(ctx context.Context, app *internal.App, userID, message string) proactive.CommandResult {
	return app.Plugin.SendCommand(ctx, userID, message)
}

func printResult(res proactive.CommandResult) error {
	if !res.OK {
		return errors.New(res.Reply)
	}
	fmt.Printf("%s %s\n", internal.Logo, res.Reply)
	return nil
}
