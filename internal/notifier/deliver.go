package notifier

import (
	"context"
	"fmt"
	"strings"

	"automata/internal/scheduler"
)

// Deliverer shows one notification.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// NewDeliverer picks the platform command for goos. Unsupported platforms
// return an error; callers run without notifications.
func NewDeliverer(goos string, run scheduler.Runner) (Deliverer, error) {
	if run == nil {
		run = scheduler.ExecRunner{}
	}
	switch goos {
	case "darwin":
		return osascript{run: run}, nil
	case "linux":
		return notifySend{run: run}, nil
	default:
		return nil, fmt.Errorf("notifications not supported on %s", goos)
	}
}

type osascript struct{ run scheduler.Runner }

func (d osascript) Deliver(ctx context.Context, n Notification) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(n.Message), escapeAppleScript(n.Title))
	if out, err := d.run.Run(ctx, "/usr/bin/osascript", "-e", script); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, out)
	}
	return nil
}

type notifySend struct{ run scheduler.Runner }

func (d notifySend) Deliver(ctx context.Context, n Notification) error {
	if out, err := d.run.Run(ctx, "notify-send", "--app-name=automata", n.Title, n.Message); err != nil {
		return fmt.Errorf("notify-send: %w: %s", err, out)
	}
	return nil
}

var appleScriptEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeAppleScript(s string) string { return appleScriptEscaper.Replace(s) }
