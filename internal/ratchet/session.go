package ratchet

import (
	"crypto/rand"
	"fmt"

	"github.com/ericlagergren/dr"
)

// persistedSession is the on-disk form of a session: the dr.State the
// ratchet mutates in place on every Seal/Open, plus any message keys
// skipped because messages arrived out of order. Skipped keys are kept
// alongside the main state rather than in a separate file so SessionSave
// remains a single atomic serialize-then-replace write.
type persistedSession struct {
	State   *dr.State
	Skipped map[string][]byte
}

// fileSkipStore adapts a persistedSession's Skipped map to dr.Store. Only
// the skipped-key bookkeeping lives here; State itself is the same pointer
// dr.Session mutates directly, so Save is a no-op - the owning ratchet.Store
// persists the whole persistedSession after every Seal/Open call instead.
type fileSkipStore struct {
	skipped map[string][]byte
}

func (s *fileSkipStore) key(nr int, pub dr.PublicKey) string {
	return fmt.Sprintf("%d:%x", nr, pub)
}

func (s *fileSkipStore) Save(*dr.State) error { return nil }

func (s *fileSkipStore) StoreKey(nr int, pub dr.PublicKey, key dr.MessageKey) error {
	s.skipped[s.key(nr, pub)] = append([]byte(nil), key...)
	return nil
}

func (s *fileSkipStore) LoadKey(nr int, pub dr.PublicKey) (dr.MessageKey, error) {
	key, ok := s.skipped[s.key(nr, pub)]
	if !ok {
		return nil, dr.ErrNotFound
	}
	return key, nil
}

func (s *fileSkipStore) DeleteKey(nr int, pub dr.PublicKey) error {
	delete(s.skipped, s.key(nr, pub))
	return nil
}

var _ dr.Store = (*fileSkipStore)(nil)

// Session is a live, ready-to-use double-ratchet session with one peer
// device. Every Seal/Open call mutates the underlying persistedSession;
// the caller (ratchet.Store) is responsible for persisting it back to
// disk before releasing the plaintext/ciphertext.
type Session struct {
	inner     *dr.Session
	persisted *persistedSession
}

func newSessionFromState(p *persistedSession) (*Session, error) {
	store := &fileSkipStore{skipped: p.Skipped}
	sess, err := dr.Resume(engine, p.State, dr.WithStore(store))
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	return &Session{inner: sess, persisted: p}, nil
}

// sessionFromSend bootstraps an outgoing session as the X3DH-style
// initiator against a peer's published prekey bundle. dr.Session keeps its
// *dr.State unexported, so rather than calling dr.NewSend (whose resulting
// state we could never retrieve for persistence) this replicates NewSend's
// key agreement by hand and hands the resulting State to dr.Resume, which
// wraps the pointer we already hold.
func sessionFromSend(sk []byte, peerRatchetPub dr.PublicKey) (*Session, error) {
	priv, err := engine.Generate(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate sending ratchet key: %w", err)
	}
	dh, err := engine.DH(priv, peerRatchetPub)
	if err != nil {
		return nil, fmt.Errorf("sending ratchet DH: %w", err)
	}
	rk, ck := engine.KDFrk(dr.RootKey(sk), dh)
	state := &dr.State{DHs: priv, DHr: peerRatchetPub, RK: rk, CKs: ck}
	return newSessionFromState(&persistedSession{State: state, Skipped: make(map[string][]byte)})
}

// sessionFromRecv bootstraps an incoming session as the responder,
// reusing the consumed prekey's private key as our initial ratchet key
// pair (symmetric to the initiator treating that prekey's public half as
// the peer's first ratchet key). Mirrors NewRecv for the same reason
// sessionFromSend mirrors NewSend.
func sessionFromRecv(sk []byte, ourPreKeyPriv dr.PrivateKey) (*Session, error) {
	state := &dr.State{DHs: ourPreKeyPriv, RK: dr.RootKey(sk)}
	return newSessionFromState(&persistedSession{State: state, Skipped: make(map[string][]byte)})
}

// Seal encrypts plaintext and returns the on-wire envelope bytes (not yet
// base64-encoded - the OTR manager does that).
func (s *Session) Seal(plaintext, additionalData []byte) ([]byte, error) {
	msg, err := s.inner.Seal(plaintext, additionalData)
	if err != nil {
		return nil, fmt.Errorf("seal message: %w", err)
	}
	return encodeMessage(msg)
}

// Open decrypts a bare (non-handshake) envelope.
func (s *Session) Open(envelope []byte, additionalData []byte) ([]byte, error) {
	w, err := decodeEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	plaintext, err := s.inner.Open(w.message(), additionalData)
	if err != nil {
		return nil, fmt.Errorf("open message: %w", err)
	}
	return plaintext, nil
}
