// Package otr implements prekey issuance and the encrypt/decrypt surface
// the rest of the module drives, sitting directly on top of
// internal/ratchet's per-device Session Store.
package otr

import (
	"encoding/base64"
	"fmt"

	"github.com/dsonbaker/wirebot/internal/errs"
	"github.com/dsonbaker/wirebot/internal/ratchet"
)

// Manager owns one bot's Session Store and exposes the plaintext-in,
// base64-ciphertext-out surface the delivery pipeline and inbound handlers
// use; it never sees HTTP or platform wire shapes.
type Manager struct {
	store *ratchet.Store
}

func NewManager(store *ratchet.Store) *Manager {
	return &Manager{store: store}
}

func sessionID(user, client string) string {
	return user + "_" + client
}

// InitializePreKeys issues exactly 8*n one-time prekeys (ids 0..8n-1, in
// that order) plus the reusable last-resort prekey (id 65535), dispensed
// last. A bot calls this exactly once, at creation.
func (m *Manager) InitializePreKeys(n int) ([]ratchet.EncodedPreKey, ratchet.EncodedPreKey, error) {
	if n < 0 {
		return nil, ratchet.EncodedPreKey{}, fmt.Errorf("%w: negative prekey count %d", errs.Protocol, n)
	}
	count := 8 * n
	out := make([]ratchet.EncodedPreKey, 0, count)
	for id := 0; id < count; id++ {
		pk, err := m.store.NewPreKey(uint16(id))
		if err != nil {
			return nil, ratchet.EncodedPreKey{}, err
		}
		out = append(out, pk)
	}
	last, err := m.store.NewPreKey(ratchet.LastPreKeyID)
	if err != nil {
		return nil, ratchet.EncodedPreKey{}, err
	}
	return out, last, nil
}

// Encrypt produces a base64 ciphertext addressed to (user, client). If
// prekey is non-nil a fresh session is bootstrapped against that bundle
// (the caller fetched it via GetPreKeys after a 412); otherwise an
// existing session for the device must already exist, or ErrMissingPreKey
// is returned.
func (m *Manager) Encrypt(user, client string, plaintext []byte, prekey *ratchet.EncodedPreKey) (string, error) {
	id := sessionID(user, client)

	if prekey != nil {
		envelope, err := m.store.SessionFromPreKey(id, prekey.Key, plaintext)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(envelope), nil
	}

	sess, ok, err := m.store.SessionLoad(id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: no session for %s/%s", errs.MissingPreKey, user, client)
	}
	envelope, err := sess.Seal(plaintext, nil)
	if err != nil {
		return "", err
	}
	if err := m.store.SessionSave(id, sess); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt opens an inbound ciphertext from (user, client), bootstrapping a
// new session as the responder if the envelope carries handshake material.
func (m *Manager) Decrypt(user, client, ciphertextB64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode ciphertext: %v", errs.Crypto, err)
	}
	return m.store.SessionFromMessage(sessionID(user, client), raw)
}

// EncryptForDevices is a best-effort fan-out over every (user, client)
// pair in devices: a device this manager has no session for is silently
// omitted from the result rather than failing the whole call, so the
// caller (internal/delivery) can post what succeeded and recover the rest
// through the missing-devices round trip.
func (m *Manager) EncryptForDevices(plaintext []byte, devices map[string][]string) map[string]map[string]string {
	recipients := make(map[string]map[string]string, len(devices))
	for user, clients := range devices {
		for _, client := range clients {
			ciphertext, err := m.Encrypt(user, client, plaintext, nil)
			if err != nil {
				continue
			}
			if recipients[user] == nil {
				recipients[user] = make(map[string]string)
			}
			recipients[user][client] = ciphertext
		}
	}
	return recipients
}
