// Package dispatch sends proactive private messages over existing streams,
// gated by a per-user cooldown.
package dispatch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tinyland-inc/dmclaw/pkg/cooldown"
	"github.com/tinyland-inc/dmclaw/pkg/host"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

// Result is the outcome of a send attempt. Detail is human readable.
type Result struct {
	OK     bool
	Detail string
}

func ok(detail string) Result   { return Result{OK: true, Detail: detail} }
func fail(detail string) Result { return Result{OK: false, Detail: detail} }

// Dispatcher orchestrates cooldown check, stream lookup and delivery.
type Dispatcher struct {
	tracker *cooldown.Tracker
	streams host.StreamRegistry
	sender  host.Sender
}

func NewDispatcher(tracker *cooldown.Tracker, streams host.StreamRegistry, sender host.Sender) *Dispatcher {
	return &Dispatcher{tracker: tracker, streams: streams, sender: sender}
}

// Tracker returns the cooldown tracker the dispatcher records into.
func (d *Dispatcher) Tracker() *cooldown.Tracker { return d.tracker }

// Send delivers message to userID's private stream on platform. The cooldown
// is consumed only by a successful delivery.
func (d *Dispatcher) Send(ctx context.Context, userID, message, platform string, window time.Duration) Result {
	if left := d.tracker.Remaining(userID, window); left > 0 {
		return fail(fmt.Sprintf("cooldown active, %d seconds remaining", int(math.Ceil(left.Seconds()))))
	}

	delivered, res := d.deliver(ctx, userID, message, platform)
	if !delivered {
		return res
	}

	d.tracker.RecordSend(userID)
	logger.InfoCF("dispatch", "Private message sent", map[string]any{
		"user_id":  userID,
		"platform": platform,
	})
	return ok("private message sent")
}

func (d *Dispatcher) deliver(ctx context.Context, userID, message, platform string) (delivered bool, res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("dispatch", "Send panicked", map[string]any{
				"user_id": userID,
				"panic":   fmt.Sprint(r),
			})
			delivered, res = false, fail(fmt.Sprintf("send error: %v", r))
		}
	}()

	stream, err := d.streams.StreamByUser(ctx, userID, platform)
	if err != nil {
		logger.ErrorCF("dispatch", "Stream lookup failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return false, fail(fmt.Sprintf("send error: %v", err))
	}
	if stream == nil {
		logger.WarnCF("dispatch", "No private stream for user, they may never have messaged the bot", map[string]any{
			"user_id":  userID,
			"platform": platform,
		})
		return false, fail(fmt.Sprintf("no private stream found for user %s", userID))
	}

	err = d.sender.SendText(ctx, message, *stream, host.SendOptions{Typing: true, Persist: true})
	if err != nil {
		logger.ErrorCF("dispatch", "Private message delivery failed", map[string]any{
			"user_id":   userID,
			"stream_id": stream.ID,
			"error":     err.Error(),
		})
		return false, fail(fmt.Sprintf("message delivery failed: %v", err))
	}
	return true, Result{}
}
