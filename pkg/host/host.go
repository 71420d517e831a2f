// Package host declares the collaborators the proactive chat plugin consumes
// from its host runtime: a person directory, a registry of conversation
// streams and an outbound text sender.
//
// The plugin never creates streams; it only looks them up.
package host

import "context"

// PersonID is the host's opaque profile identifier.
type PersonID string

// Well-known person attributes.
const (
	AttrUserID     = "user_id"
	AttrNickname   = "nickname"
	AttrImpression = "impression"
)

// Directory maps names and platform ids to person profiles.
type Directory interface {
	// PersonIDByName looks a profile up by display name.
	PersonIDByName(ctx context.Context, name string) (PersonID, bool, error)
	// PersonID looks a profile up by platform and numeric user id.
	PersonID(ctx context.Context, platform string, userID int64) (PersonID, bool, error)
	// PersonValue reads a stored attribute of a profile.
	PersonValue(ctx context.Context, id PersonID, attr string) (any, bool, error)
}

// Stream is a handle for an existing conversation channel.
type Stream struct {
	ID       string
	Platform string
	UserID   string
	// ChatID is the platform-side address used for delivery (DM channel id,
	// chat id). Empty means UserID.
	ChatID  string
	Private bool
}

// Target returns the platform address messages to this stream go to.
func (s Stream) Target() string {
	if s.ChatID != "" {
		return s.ChatID
	}
	return s.UserID
}

// StreamInfo describes the user behind a stream.
type StreamInfo struct {
	UserID   string
	UserName string
}

// StreamRegistry finds conversation streams the host already knows.
type StreamRegistry interface {
	// StreamByUser returns the private stream for a user, or nil when none exists.
	StreamByUser(ctx context.Context, userID, platform string) (*Stream, error)
	// PrivateStreams lists private streams of a platform, most recent first.
	PrivateStreams(ctx context.Context, platform string) ([]Stream, error)
	// StreamInfo describes a stream.
	StreamInfo(ctx context.Context, s Stream) (StreamInfo, error)
}

// SendOptions tune a delivery.
type SendOptions struct {
	// Typing shows a composing indicator before the message when supported.
	Typing bool
	// Persist asks the host to record the message in its history.
	Persist bool
}

// Sender delivers text over an existing stream.
type Sender interface {
	SendText(ctx context.Context, text string, stream Stream, opts SendOptions) error
}
