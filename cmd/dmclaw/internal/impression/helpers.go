package impression

import (
	"context"
	"fmt"

	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal"
)

func impressionCmd(platform string, userID int64, value int) error {
	app, closeApp, err := internal.Open(platform, false)
	if err != nil {
		return err
	}
	defer closeApp()

	if err := setImpression(context.Background(), app, userID, value); err != nil {
		return err
	}
	fmt.Printf("✓ Impression of %d set to %d\n", userID, value)
	return nil
}

func setImpression(ctx context.Context, app *internal.App, userID int64, value int) error {
	return app.Store.SetImpression(ctx, app.Config.General.DefaultPlatform, userID, value)
}
