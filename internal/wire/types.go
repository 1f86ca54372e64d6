// Package wire holds the JSON wire-format types shared by the public API
// (package wirebot) and the internal packages that build and parse HTTP
// bodies against the Wire platform (internal/outbound, internal/delivery).
// They live here, rather than directly in the root package, so those
// internal packages can use them without importing the root package that
// imports them back.
package wire

import "encoding/json"

// Member is a conversation participant. Members are compared and hashed by
// ID alone; Status carries whatever the platform last reported (muted,
// archived, ...) without affecting set membership.
type Member struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

// Origin identifies the user who created the bot.
type Origin struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Handle   string `json:"handle"`
	AccentID int    `json:"accent_id"`
}

// Conversation is the conversation the bot was added to.
type Conversation struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

// BotCreationData is the body of POST /bots.
type BotCreationData struct {
	ID           string       `json:"id"`
	Client       string       `json:"client"`
	Token        string       `json:"token"`
	Locale       string       `json:"locale"`
	Origin       Origin       `json:"origin"`
	Conversation Conversation `json:"conversation"`
}

// LastPreKeyID is the reserved, infinitely reusable "last resort" prekey id.
const LastPreKeyID = 65535

// EncodedPreKey is a base64-encoded serialized prekey, keyed by its 16-bit
// id.
type EncodedPreKey struct {
	ID  uint16 `json:"id"`
	Key string `json:"key"`
}

// BotCreationResponse is the 201 body returned from POST /bots.
type BotCreationResponse struct {
	PreKeys    []EncodedPreKey `json:"prekeys"`
	LastPreKey EncodedPreKey   `json:"last_prekey"`
}

// ConversationEventType enumerates the event types the platform pushes to
// POST /bots/{id}/messages.
type ConversationEventType string

const (
	EventMessageAdd  ConversationEventType = "conversation.otr-message-add"
	EventMemberJoin  ConversationEventType = "conversation.member-join"
	EventMemberLeave ConversationEventType = "conversation.member-leave"
	EventRename      ConversationEventType = "conversation.rename"
)

// MessageEventData is the `data` payload of a conversation.otr-message-add
// event: an OTR-encrypted, base64-encoded ciphertext addressed to one of
// the bot's devices. Sender and Recipient are client ids, not user ids -
// the sending user is MessageData.From; Sender is that user's device that
// encrypted this ciphertext, Recipient is the bot's own device it was
// addressed to.
type MessageEventData struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// MembershipEventData is the `data` payload of member-join/member-leave
// events.
type MembershipEventData struct {
	UserIDs []string `json:"user_ids"`
}

// RenameEventData is the `data` payload of a conversation.rename event.
type RenameEventData struct {
	Name string `json:"name"`
}

// MessageData is the body of POST /bots/{id}/messages. Data is left as
// raw JSON and decoded according to Type once the route handler knows
// which shape to expect.
type MessageData struct {
	Type         ConversationEventType `json:"type"`
	Conversation string                `json:"conversation"`
	From         string                `json:"from"`
	Data         json.RawMessage       `json:"data"`
	Time         string                `json:"time"`
}

// Devices is the 412 Precondition Failed body: the set of recipients the
// bot has no session for yet, keyed by user id.
type Devices struct {
	Missing map[string][]string `json:"missing"`
}

// DevicePreKeys is the response of POST /bot/users/prekeys: a fresh prekey
// per missing (user, client) pair.
type DevicePreKeys map[string]map[string]EncodedPreKey

// MessageRequest is the body of POST /bot/messages.
type MessageRequest struct {
	Sender     string                       `json:"sender"`
	Recipients map[string]map[string]string `json:"recipients"`
}

// AssetUploadResponse is the 2xx body of POST /bots/assets.
type AssetUploadResponse struct {
	Key   string `json:"key"`
	Token string `json:"token"`
}
