package ratchet

import (
	"fmt"

	"github.com/ericlagergren/dr"
)

// envelopeKind discriminates the two shapes a ciphertext on the wire can
// take: the very first message to a peer bundles the handshake material
// needed to bootstrap a session; every later message is a bare ratchet
// message.
type envelopeKind uint8

const (
	kindPreKeyMessage envelopeKind = iota
	kindMessage
)

type envelopeWire struct {
	Kind envelopeKind

	// Present only when Kind == kindPreKeyMessage.
	PreKeyID        uint16
	SenderIdentity  []byte
	SenderEphemeral []byte

	Header     dr.Header
	Ciphertext []byte
}

func encodeMessage(msg dr.Message) ([]byte, error) {
	return gobEncode(envelopeWire{
		Kind:       kindMessage,
		Header:     msg.Header,
		Ciphertext: msg.Ciphertext,
	})
}

func encodePreKeyMessage(hs handshakeInit, msg dr.Message) ([]byte, error) {
	return gobEncode(envelopeWire{
		Kind:            kindPreKeyMessage,
		PreKeyID:        hs.PreKeyID,
		SenderIdentity:  hs.OurIdentityPub,
		SenderEphemeral: hs.OurEphemeral,
		Header:          msg.Header,
		Ciphertext:      msg.Ciphertext,
	})
}

func decodeEnvelope(raw []byte) (envelopeWire, error) {
	var w envelopeWire
	if err := gobDecode(raw, &w); err != nil {
		return envelopeWire{}, fmt.Errorf("decode envelope: %w", err)
	}
	return w, nil
}

func (w envelopeWire) message() dr.Message {
	return dr.Message{Header: w.Header, Ciphertext: w.Ciphertext}
}
