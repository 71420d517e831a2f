package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
	"github.com/tinyland-inc/dmclaw/pkg/proactive"
)

const helpText = `Commands:
  /私聊 <user-id> [message]   send a private message
  /私聊列表                   list private streams
  act <user-id|name> [message] run the proactive action
  sweep                      run one scheduled check-in pass
  exit | quit`

func consoleCmd(debug bool, platform string) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	app, closeApp, err := internal.Open(platform, true)
	if err != nil {
		return err
	}
	defer closeApp()

	fmt.Printf("%s Interactive mode (Ctrl+C to exit), type help for commands\n\n", internal.Logo)
	interactiveMode(app)
	return nil
}

func interactiveMode(app *internal.App) {
	prompt := fmt.Sprintf("%s > ", internal.Logo)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".dmclaw_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(app, os.Stdin)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		out, quit := eval(context.Background(), app, line)
		if out != "" {
			fmt.Printf("\n%s\n\n", out)
		}
		if quit {
			return
		}
	}
}

func simpleInteractiveMode(app *internal.App, in io.Reader) {
	reader := bufio.NewReader(in)
	for {
		fmt.Printf("%s > ", internal.Logo)
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		out, quit := eval(context.Background(), app, line)
		if out != "" {
			fmt.Printf("\n%s\n\n", out)
		}
		if quit {
			return
		}
	}
}

// eval runs one console line and returns what to print.
func eval(ctx context.Context, app *internal.App, line string) (string, bool) {
	input := strings.TrimSpace(line)
	switch input {
	case "":
		return "", false
	case "exit", "quit":
		return "Goodbye!", true
	case "help":
		return helpText, false
	case "sweep":
		sum, err := app.Scheduler.Sweep(ctx)
		if err != nil {
			return fmt.Sprintf("Error: %v", err), false
		}
		return fmt.Sprintf("Sweep: %d streams, %d attempted, %d sent", sum.Streams, sum.Attempted, sum.Sent), false
	}

	if rest, ok := strings.CutPrefix(input, "act "); ok {
		target, message, _ := strings.Cut(strings.TrimSpace(rest), " ")
		res := app.Plugin.Act(ctx, proactive.ActionInput{
			Target:  target,
			Message: strings.TrimSpace(message),
			Reason:  "console",
		}, proactive.Invocation{})
		if !res.OK {
			return "Failed: " + res.Detail, false
		}
		return res.Detail, false
	}

	if res, ok := app.Router.Route(ctx, input); ok {
		return res.Reply, false
	}
	return "Unknown command, type help for commands", false
}
