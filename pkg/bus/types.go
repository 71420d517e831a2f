package bus

// Peer kinds.
const (
	PeerDirect = "direct"
	PeerGroup  = "group"
)

// Peer identifies the conversation a message belongs to.
type Peer struct {
	Kind string `json:"kind"` // "direct" | "group"
	ID   string `json:"id"`
}

// InboundMessage is a message a channel received from a user.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name,omitempty"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	Peer       Peer              `json:"peer"`
	MessageID  string            `json:"message_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Private reports whether the message arrived in a one-to-one conversation.
func (m InboundMessage) Private() bool {
	return m.Peer.Kind == PeerDirect
}

// OutboundMessage is a reply for a channel to deliver to ChatID.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}
