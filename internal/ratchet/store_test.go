package ratchet

import (
	"bytes"
	"testing"
)

func TestSessionRoundTrip(t *testing.T) {
	alice := NewStore(t.TempDir(), "alice-bot")
	bob := NewStore(t.TempDir(), "bob-bot")

	bobPreKey, err := bob.NewPreKey(0)
	if err != nil {
		t.Fatalf("bob.NewPreKey: %v", err)
	}

	plaintext := []byte("hello from alice")
	envelope, err := alice.SessionFromPreKey("bob_device1", bobPreKey.Key, plaintext)
	if err != nil {
		t.Fatalf("alice.SessionFromPreKey: %v", err)
	}

	got, err := bob.SessionFromMessage("alice_device1", envelope)
	if err != nil {
		t.Fatalf("bob.SessionFromMessage: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("got plaintext %q, want %q", got, plaintext)
	}

	// bob's prekey 0 must now be consumed.
	if _, err := bob.loadPreKey(0); err == nil {
		t.Fatal("expected prekey 0 to be consumed after bootstrap")
	}

	// Second message on the now-established sessions needs no handshake.
	reply := []byte("hi alice, this is bob")
	replyEnvelope, err := bob.SessionFromPreKey("alice_device1", "", reply)
	if err == nil {
		t.Fatalf("expected SessionFromPreKey with a bad bundle to fail, got envelope %v", replyEnvelope)
	}

	sess, ok, err := bob.SessionLoad("alice_device1")
	if err != nil || !ok {
		t.Fatalf("bob.SessionLoad(alice_device1): ok=%v err=%v", ok, err)
	}
	sealed, err := sess.Seal(reply, nil)
	if err != nil {
		t.Fatalf("sess.Seal: %v", err)
	}
	if err := bob.SessionSave("alice_device1", sess); err != nil {
		t.Fatalf("bob.SessionSave: %v", err)
	}

	back, err := alice.SessionFromMessage("bob_device1", sealed)
	if err != nil {
		t.Fatalf("alice.SessionFromMessage (reply): %v", err)
	}
	if !bytes.Equal(back, reply) {
		t.Fatalf("got reply %q, want %q", back, reply)
	}
}

func TestLastResortPreKeyIsReusable(t *testing.T) {
	store := NewStore(t.TempDir(), "bot")

	if _, err := store.NewPreKey(LastPreKeyID); err != nil {
		t.Fatalf("NewPreKey(LastPreKeyID): %v", err)
	}

	store.consumePreKey(LastPreKeyID)

	if _, err := store.loadPreKey(LastPreKeyID); err != nil {
		t.Fatalf("last-resort prekey should survive consumption, got: %v", err)
	}
}

func TestNonSentinelPreKeyIsConsumedOnce(t *testing.T) {
	store := NewStore(t.TempDir(), "bot")

	if _, err := store.NewPreKey(3); err != nil {
		t.Fatalf("NewPreKey(3): %v", err)
	}
	store.consumePreKey(3)

	if _, err := store.loadPreKey(3); err == nil {
		t.Fatal("expected prekey 3 to be gone after consumption")
	}
}

func TestCreationDataRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), "bot")
	raw := []byte(`{"id":"bot-1"}`)

	if err := store.SaveCreationData(raw); err != nil {
		t.Fatalf("SaveCreationData: %v", err)
	}
	got, err := store.LoadCreationData()
	if err != nil {
		t.Fatalf("LoadCreationData: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("got %q, want %q", got, raw)
	}
}

func TestSessionFromMessageWithUnknownPreKeyFails(t *testing.T) {
	store := NewStore(t.TempDir(), "bot")
	other := NewStore(t.TempDir(), "peer")
	otherPreKey, err := other.NewPreKey(0)
	if err != nil {
		t.Fatalf("other.NewPreKey: %v", err)
	}

	// Build a prekey message addressed at the peer's prekey 0, which this
	// store never issued - decoding it here must fail cleanly rather than
	// panic.
	envelope, err := store.SessionFromPreKey("ghost", otherPreKey.Key, []byte("x"))
	if err != nil {
		t.Fatalf("SessionFromPreKey: %v", err)
	}
	// Re-decoding the same prekey message against a fresh id with no
	// matching prekey on this store must fail.
	if _, err := store.SessionFromMessage("unrelated", envelope); err == nil {
		t.Fatal("expected decode against unrelated id with no matching prekey to fail")
	}
}
