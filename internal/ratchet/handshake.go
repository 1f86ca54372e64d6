package ratchet

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/ericlagergren/dr"
	"golang.org/x/crypto/hkdf"
)

// The handshake is a triple-DH key agreement over the prekey bundle
// (identity key + one prekey, Proteus-style - no separate signed prekey).
// It is built here directly on top of the Ratchet interface's Generate/DH
// primitives because github.com/ericlagergren/dr only implements the
// ratchet itself, not the prekey handshake that seeds it.

const hkdfInfo = "wirebot/handshake/SK"

func deriveSK(dh1, dh2, dh3 []byte) ([]byte, error) {
	ikm := make([]byte, 0, len(dh1)+len(dh2)+len(dh3))
	ikm = append(ikm, dh1...)
	ikm = append(ikm, dh2...)
	ikm = append(ikm, dh3...)
	reader := hkdf.New(sha256.New, ikm, nil, []byte(hkdfInfo))
	sk := make([]byte, 32)
	if _, err := io.ReadFull(reader, sk); err != nil {
		return nil, fmt.Errorf("derive shared secret: %w", err)
	}
	return sk, nil
}

// handshakeInit is run by the party initiating a session against a peer's
// published (identity, prekey) bundle - used both by the bot encrypting to
// a new device (internal/otr.Manager.Encrypt with a fetched prekey) and
// conceptually symmetric to how a peer bootstraps a session to
// the bot using one of the bot's own issued prekeys.
type handshakeInit struct {
	SK             []byte
	OurEphemeral   dr.PublicKey
	OurIdentityPub dr.PublicKey
	PreKeyID       uint16
}

func initiatorHandshake(ourIdentity IdentityKeyPair, theirIdentityPub, theirPreKeyPub dr.PublicKey, preKeyID uint16) (handshakeInit, error) {
	ourEphemeral, err := engine.Generate(rand.Reader)
	if err != nil {
		return handshakeInit{}, fmt.Errorf("generate ephemeral key: %w", err)
	}

	dh1, err := engine.DH(ourIdentity.Private, theirPreKeyPub)
	if err != nil {
		return handshakeInit{}, fmt.Errorf("DH1: %w", err)
	}
	dh2, err := engine.DH(ourEphemeral, theirIdentityPub)
	if err != nil {
		return handshakeInit{}, fmt.Errorf("DH2: %w", err)
	}
	dh3, err := engine.DH(ourEphemeral, theirPreKeyPub)
	if err != nil {
		return handshakeInit{}, fmt.Errorf("DH3: %w", err)
	}

	sk, err := deriveSK(dh1, dh2, dh3)
	if err != nil {
		return handshakeInit{}, err
	}

	return handshakeInit{
		SK:             sk,
		OurEphemeral:   engine.Public(ourEphemeral),
		OurIdentityPub: ourIdentity.Public,
		PreKeyID:       preKeyID,
	}, nil
}

// responderHandshake recomputes the same shared secret from the
// responder's side: our own identity + the consumed prekey's private
// halves, against the initiator's identity and ephemeral public keys
// embedded in the first message.
func responderHandshake(ourIdentity IdentityKeyPair, ourPreKey PreKey, theirIdentityPub, theirEphemeralPub dr.PublicKey) ([]byte, error) {
	dh1, err := engine.DH(ourPreKey.Private, theirIdentityPub)
	if err != nil {
		return nil, fmt.Errorf("DH1: %w", err)
	}
	dh2, err := engine.DH(ourIdentity.Private, theirEphemeralPub)
	if err != nil {
		return nil, fmt.Errorf("DH2: %w", err)
	}
	dh3, err := engine.DH(ourPreKey.Private, theirEphemeralPub)
	if err != nil {
		return nil, fmt.Errorf("DH3: %w", err)
	}
	return deriveSK(dh1, dh2, dh3)
}
