// Package ratchet implements per-bot identity keypairs, prekey issuance,
// and double-ratchet session persistence backed by a directory of flat
// files. The ratchet math itself is delegated to
// github.com/ericlagergren/dr; this package supplies the
// prekey-bootstrapped handshake, the on-disk envelope format, and atomic
// persistence.
package ratchet

import (
	"crypto/rand"
	"fmt"

	"github.com/ericlagergren/dr"
)

// ratchetNamespace binds every derived key to this library, the same way
// dr.DJB's namespace argument is documented to do.
const ratchetNamespace = "wire.com/wirebot/otr/v1"

// engine is the single Ratchet implementation used throughout: X25519,
// XChaCha20-Poly1305, HKDF-SHA256, HMAC-SHA256 (see ericlagergren/dr's
// djb.go). One value is shared across every session, it carries no
// mutable state.
var engine = dr.DJB(ratchetNamespace)

// IdentityKeyPair is a bot's long-term identity key, used as one leg of
// the triple-DH handshake that bootstraps every peer session.
type IdentityKeyPair struct {
	Private dr.PrivateKey
	Public  dr.PublicKey
}

func generateIdentity() (IdentityKeyPair, error) {
	priv, err := engine.Generate(rand.Reader)
	if err != nil {
		return IdentityKeyPair{}, fmt.Errorf("generate identity keypair: %w", err)
	}
	return IdentityKeyPair{Private: priv, Public: engine.Public(priv)}, nil
}
