// Package wireformat is a small, deliberately hand-written stand-in for
// the generated wire-format message descriptors the Wire platform's real
// clients exchange (text, confirmation, and remote-asset payloads). The
// real schema is generated from a .proto definition this repository has no
// generator checked in for, so it is encoded as plain JSON instead.
package wireformat

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// GenericMessage is the single envelope every outbound payload is wrapped
// in before being handed to the OTR Manager for encryption.
type GenericMessage struct {
	ID           string        `json:"id"`
	Text         *Text         `json:"text,omitempty"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
	Asset        *Asset        `json:"asset,omitempty"`
}

// Text is a plain text message body.
type Text struct {
	Content string `json:"content"`
}

// Confirmation acknowledges receipt of a prior message by id. Every
// conversation.otr-message-add event causes one of these to be queued back
// to the sender.
type Confirmation struct {
	FirstMessageID string `json:"first_message_id"`
}

// Asset references ciphertext uploaded out-of-band via POST /bots/assets:
// the asset store key/token plus the symmetric key used to encrypt the
// asset bytes themselves and the SHA-256 digest of the uploaded bytes
// (distinct from, and layered under,
// the OTR session encryption every GenericMessage still goes through).
type Asset struct {
	Key      string `json:"key"`
	Token    string `json:"token"`
	OTRKey   []byte `json:"otr_key"`
	Sha256   []byte `json:"sha256"`
	MimeType string `json:"mime_type"`
}

// NewText builds a new text GenericMessage with a fresh message id.
func NewText(content string) GenericMessage {
	return GenericMessage{ID: uuid.NewString(), Text: &Text{Content: content}}
}

// NewConfirmation builds a confirmation GenericMessage acknowledging
// messageID.
func NewConfirmation(messageID string) GenericMessage {
	return GenericMessage{ID: uuid.NewString(), Confirmation: &Confirmation{FirstMessageID: messageID}}
}

// NewAsset builds a remote-asset GenericMessage pointing at an
// already-uploaded asset.
func NewAsset(key, token string, otrKey, sha256 []byte, mimeType string) GenericMessage {
	return GenericMessage{
		ID: uuid.NewString(),
		Asset: &Asset{
			Key: key, Token: token, OTRKey: otrKey, Sha256: sha256, MimeType: mimeType,
		},
	}
}

// MessageID returns the envelope's own id, used as the confirmation target
// the next DELIVERED receipt will reference.
func (m GenericMessage) MessageID() string {
	return m.ID
}

// Marshal serializes the envelope to the bytes the OTR Manager encrypts.
func (m GenericMessage) Marshal() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal generic message: %w", err)
	}
	return b, nil
}

// Unmarshal parses plaintext decrypted by the OTR Manager back into a
// GenericMessage.
func Unmarshal(plaintext []byte) (GenericMessage, error) {
	var m GenericMessage
	if err := json.Unmarshal(plaintext, &m); err != nil {
		return GenericMessage{}, fmt.Errorf("unmarshal generic message: %w", err)
	}
	return m, nil
}
