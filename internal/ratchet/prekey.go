package ratchet

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/ericlagergren/dr"
)

// LastPreKeyID is the reserved, infinitely reusable "last resort" prekey.
const LastPreKeyID uint16 = 65535

// PreKey is a one-time (or, for LastPreKeyID, reusable) keypair a peer
// consumes to bootstrap a session with this bot without a prior round
// trip.
type PreKey struct {
	ID      uint16
	Private dr.PrivateKey
	Public  dr.PublicKey
}

func generatePreKey(id uint16) (PreKey, error) {
	priv, err := engine.Generate(rand.Reader)
	if err != nil {
		return PreKey{}, fmt.Errorf("generate prekey %d: %w", id, err)
	}
	return PreKey{ID: id, Private: priv, Public: engine.Public(priv)}, nil
}

// EncodedPreKey is the wire-serialized form of a PreKey's public half:
// the bot's identity public key, this prekey's own public key, and its
// id, base64-encoded as a single blob so a peer can publish/consume it
// opaquely.
type EncodedPreKey struct {
	ID  uint16
	Key string // base64 of a framed, gob-encoded preKeyBundleWire
}

type preKeyBundleWire struct {
	PreKeyID    uint16
	IdentityKey []byte
	PreKeyKey   []byte
}

func encodeBundle(identity dr.PublicKey, pk PreKey) (EncodedPreKey, error) {
	wire := preKeyBundleWire{
		PreKeyID:    pk.ID,
		IdentityKey: identity,
		PreKeyKey:   pk.Public,
	}
	raw, err := marshalBundle(wire)
	if err != nil {
		return EncodedPreKey{}, fmt.Errorf("encode prekey %d: %w", pk.ID, err)
	}
	return EncodedPreKey{ID: pk.ID, Key: base64.StdEncoding.EncodeToString(raw)}, nil
}

// decodeBundleB64 parses a base64-encoded prekey bundle as published by a
// peer (fetched via the Outbound Client's GetPreKeys call).
func decodeBundleB64(b64 string) (preKeyBundleWire, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return preKeyBundleWire{}, fmt.Errorf("decode prekey bundle: %w", err)
	}
	return unmarshalBundle(raw)
}
