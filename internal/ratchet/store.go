package ratchet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dsonbaker/wirebot/internal/errs"
	"github.com/ericlagergren/dr"
)

// Store is the on-disk Session Store for a single bot: its identity
// keypair, its outstanding prekeys, and one persisted double-ratchet
// session per (user, client) device it has ever talked to. Layout under
// Root:
//
//	<root>/<bot-id>/identity.id
//	<root>/<bot-id>/<id>.pkid
//	<root>/<bot-id>/<user-uuid>_<client-id>
//	<root>/<bot-id>/bot_data.json
//
// Every write goes through writeAtomic (write to a temp file, then
// rename), so a crash mid-write never leaves a half-written blob behind -
// the same contract the original Rust cryptobox file store gave callers.
type Store struct {
	Root  string
	BotID string
}

func NewStore(root, botID string) *Store {
	return &Store{Root: root, BotID: botID}
}

func (s *Store) botDir() string {
	return filepath.Join(s.Root, s.BotID)
}

func (s *Store) identityPath() string {
	return filepath.Join(s.botDir(), "identity.id")
}

func (s *Store) preKeyPath(id uint16) string {
	return filepath.Join(s.botDir(), fmt.Sprintf("%d.pkid", id))
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.botDir(), id)
}

func (s *Store) creationDataPath() string {
	return filepath.Join(s.botDir(), "bot_data.json")
}

// SaveCreationData persists the raw bot-creation request body, mirroring
// the original storage.rs's save_state call.
func (s *Store) SaveCreationData(raw []byte) error {
	return writeAtomic(s.creationDataPath(), raw)
}

// LoadCreationData returns the raw bot-creation request body persisted by
// SaveCreationData, used to rebuild a bot's BotState when it is hydrated
// from disk instead of freshly created.
func (s *Store) LoadCreationData() ([]byte, error) {
	raw, err := os.ReadFile(s.creationDataPath())
	if err != nil {
		return nil, fmt.Errorf("%w: read creation data: %v", errs.Storage, err)
	}
	return raw, nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", errs.Storage, filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", errs.Storage, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write temp file: %v", errs.Storage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %v", errs.Storage, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename into place: %v", errs.Storage, err)
	}
	return nil
}

// LoadOrCreateIdentity returns the bot's long-term identity keypair,
// generating and persisting one on first use.
func (s *Store) LoadOrCreateIdentity() (IdentityKeyPair, error) {
	raw, err := os.ReadFile(s.identityPath())
	if err == nil {
		var id IdentityKeyPair
		if err := gobDecode(raw, &id); err != nil {
			return IdentityKeyPair{}, fmt.Errorf("%w: decode identity: %v", errs.Crypto, err)
		}
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return IdentityKeyPair{}, fmt.Errorf("%w: read identity: %v", errs.Storage, err)
	}

	id, err := generateIdentity()
	if err != nil {
		return IdentityKeyPair{}, err
	}
	blob, err := gobEncode(id)
	if err != nil {
		return IdentityKeyPair{}, fmt.Errorf("%w: encode identity: %v", errs.Crypto, err)
	}
	if err := writeAtomic(s.identityPath(), blob); err != nil {
		return IdentityKeyPair{}, err
	}
	return id, nil
}

// NewPreKey generates and persists prekey id, returning its published
// (public-only) bundle. Callers are expected to issue ids 0..8n-1 and
// finally LastPreKeyID.
func (s *Store) NewPreKey(id uint16) (EncodedPreKey, error) {
	identity, err := s.LoadOrCreateIdentity()
	if err != nil {
		return EncodedPreKey{}, err
	}
	pk, err := generatePreKey(id)
	if err != nil {
		return EncodedPreKey{}, fmt.Errorf("%w: %v", errs.Crypto, err)
	}
	blob, err := gobEncode(pk)
	if err != nil {
		return EncodedPreKey{}, fmt.Errorf("%w: encode prekey: %v", errs.Crypto, err)
	}
	if err := writeAtomic(s.preKeyPath(id), blob); err != nil {
		return EncodedPreKey{}, err
	}
	return encodeBundle(identity.Public, pk)
}

// loadPreKey reads a previously persisted prekey's private half.
func (s *Store) loadPreKey(id uint16) (PreKey, error) {
	raw, err := os.ReadFile(s.preKeyPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return PreKey{}, fmt.Errorf("%w: prekey %d not found", errs.MissingPreKey, id)
		}
		return PreKey{}, fmt.Errorf("%w: read prekey %d: %v", errs.Storage, id, err)
	}
	var pk PreKey
	if err := gobDecode(raw, &pk); err != nil {
		return PreKey{}, fmt.Errorf("%w: decode prekey %d: %v", errs.Crypto, id, err)
	}
	return pk, nil
}

// consumePreKey deletes a one-time prekey after it bootstraps a session.
// The last-resort id is never deleted - it is reused for every device that
// has exhausted its one-time allotment.
func (s *Store) consumePreKey(id uint16) {
	if id == LastPreKeyID {
		return
	}
	os.Remove(s.preKeyPath(id))
}

// SessionLoad returns the persisted session for id, or ok=false if none
// exists yet.
func (s *Store) SessionLoad(id string) (*Session, bool, error) {
	raw, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: read session %s: %v", errs.Storage, id, err)
	}
	var p persistedSession
	if err := gobDecode(raw, &p); err != nil {
		return nil, false, fmt.Errorf("%w: decode session %s: %v", errs.Crypto, id, err)
	}
	sess, err := newSessionFromState(&p)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", errs.Crypto, err)
	}
	return sess, true, nil
}

// SessionSave persists the full mutated state of sess (ratchet state plus
// any skipped-message keys) to id's session file.
func (s *Store) SessionSave(id string, sess *Session) error {
	blob, err := gobEncode(sess.persisted)
	if err != nil {
		return fmt.Errorf("%w: encode session %s: %v", errs.Crypto, id, err)
	}
	return writeAtomic(s.sessionPath(id), blob)
}

// SessionFromPreKey bootstraps a fresh outgoing session as the initiator
// against a peer's published prekey bundle (fetched via the Outbound
// Client's GetPreKeys call), encrypts plaintext as the very first message
// on that session, and persists the result under id. The bundle is passed
// base64-encoded, as published, and decoded here.
func (s *Store) SessionFromPreKey(id string, peerBundleB64 string, plaintext []byte) ([]byte, error) {
	bundle, err := decodeBundleB64(peerBundleB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.Crypto, err)
	}
	identity, err := s.LoadOrCreateIdentity()
	if err != nil {
		return nil, err
	}
	hs, err := initiatorHandshake(identity, dr.PublicKey(bundle.IdentityKey), dr.PublicKey(bundle.PreKeyKey), bundle.PreKeyID)
	if err != nil {
		return nil, fmt.Errorf("%w: handshake: %v", errs.Crypto, err)
	}
	sess, err := sessionFromSend(hs.SK, dr.PublicKey(bundle.PreKeyKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.Crypto, err)
	}
	msg, err := sess.inner.Seal(plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: seal prekey message: %v", errs.Crypto, err)
	}
	envelope, err := encodePreKeyMessage(hs, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.Crypto, err)
	}
	if err := s.SessionSave(id, sess); err != nil {
		return nil, err
	}
	return envelope, nil
}

// SessionFromMessage decrypts an inbound envelope for id. If the
// envelope carries handshake material (kindPreKeyMessage) a new session is
// bootstrapped as the responder and the consumed prekey is retired;
// otherwise id must already have a persisted session to open against.
func (s *Store) SessionFromMessage(id string, envelope []byte) ([]byte, error) {
	w, err := decodeEnvelope(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.Crypto, err)
	}

	if w.Kind != kindPreKeyMessage {
		sess, ok, err := s.SessionLoad(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: no session for %s and message carries no handshake", errs.MissingPreKey, id)
		}
		plaintext, err := sess.Open(envelope, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.Crypto, err)
		}
		if err := s.SessionSave(id, sess); err != nil {
			return nil, err
		}
		return plaintext, nil
	}

	identity, err := s.LoadOrCreateIdentity()
	if err != nil {
		return nil, err
	}
	preKey, err := s.loadPreKey(w.PreKeyID)
	if err != nil {
		return nil, err
	}
	sk, err := responderHandshake(identity, preKey, dr.PublicKey(w.SenderIdentity), dr.PublicKey(w.SenderEphemeral))
	if err != nil {
		return nil, fmt.Errorf("%w: handshake: %v", errs.Crypto, err)
	}
	sess, err := sessionFromRecv(sk, preKey.Private)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.Crypto, err)
	}
	plaintext, err := sess.inner.Open(w.message(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open prekey message: %v", errs.Crypto, err)
	}
	s.consumePreKey(w.PreKeyID)
	if err := s.SessionSave(id, sess); err != nil {
		return nil, err
	}
	return plaintext, nil
}
