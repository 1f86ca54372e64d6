package otr

import (
	"bytes"
	"testing"

	"github.com/dsonbaker/wirebot/internal/ratchet"
)

func TestInitializePreKeysIssuesEightPerMemberPlusSentinel(t *testing.T) {
	store := ratchet.NewStore(t.TempDir(), "bot")
	manager := NewManager(store)

	preKeys, last, err := manager.InitializePreKeys(3)
	if err != nil {
		t.Fatalf("InitializePreKeys: %v", err)
	}
	if len(preKeys) != 24 {
		t.Fatalf("got %d prekeys, want 24", len(preKeys))
	}
	for i, pk := range preKeys {
		if pk.ID != uint16(i) {
			t.Fatalf("prekey %d has id %d, want sequential ids starting at 0", i, pk.ID)
		}
	}
	if last.ID != ratchet.LastPreKeyID {
		t.Fatalf("last prekey id = %d, want %d", last.ID, ratchet.LastPreKeyID)
	}
}

func TestEncryptWithoutSessionOrPreKeyFails(t *testing.T) {
	store := ratchet.NewStore(t.TempDir(), "bot")
	manager := NewManager(store)

	if _, err := manager.Encrypt("alice", "device1", []byte("hi"), nil); err == nil {
		t.Fatal("expected Encrypt with no session and no prekey to fail")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	aliceStore := ratchet.NewStore(t.TempDir(), "alice-bot")
	bobStore := ratchet.NewStore(t.TempDir(), "bob-bot")
	alice := NewManager(aliceStore)
	bob := NewManager(bobStore)

	bobPreKey, err := bobStore.NewPreKey(0)
	if err != nil {
		t.Fatalf("bobStore.NewPreKey: %v", err)
	}

	ciphertext, err := alice.Encrypt("bob", "device1", []byte("hello bob"), &bobPreKey)
	if err != nil {
		t.Fatalf("alice.Encrypt: %v", err)
	}

	plaintext, err := bob.Decrypt("alice", "device1", ciphertext)
	if err != nil {
		t.Fatalf("bob.Decrypt: %v", err)
	}
	if !bytes.Equal(plaintext, []byte("hello bob")) {
		t.Fatalf("got %q, want %q", plaintext, "hello bob")
	}
}

func TestEncryptForDevicesSkipsDevicesWithoutSessions(t *testing.T) {
	aliceStore := ratchet.NewStore(t.TempDir(), "alice-bot")
	bobStore := ratchet.NewStore(t.TempDir(), "bob-bot")
	alice := NewManager(aliceStore)
	bob := NewManager(bobStore)

	bobPreKey, err := bobStore.NewPreKey(0)
	if err != nil {
		t.Fatalf("bobStore.NewPreKey: %v", err)
	}

	// Bootstrap sessions on both sides first, so the later EncryptForDevices
	// call for bob/device1 has an established session to reuse.
	seed, err := alice.Encrypt("bob", "device1", []byte("seed"), &bobPreKey)
	if err != nil {
		t.Fatalf("seed Encrypt: %v", err)
	}
	if _, err := bob.Decrypt("alice", "device1", seed); err != nil {
		t.Fatalf("seed Decrypt: %v", err)
	}

	devices := map[string][]string{
		"bob":   {"device1", "device2"}, // device2 has no session and no prekey
		"carol": {"device1"},            // carol has neither
	}
	recipients := alice.EncryptForDevices([]byte("broadcast"), devices)

	if _, ok := recipients["bob"]["device1"]; !ok {
		t.Fatal("expected bob/device1 (has an established session) to be included")
	}
	if _, ok := recipients["bob"]["device2"]; ok {
		t.Fatal("expected bob/device2 (no session, no prekey) to be skipped")
	}
	if _, ok := recipients["carol"]; ok {
		t.Fatal("expected carol (no sessions at all) to be absent from recipients")
	}

	if _, err := bob.Decrypt("alice", "device1", recipients["bob"]["device1"]); err != nil {
		t.Fatalf("bob.Decrypt broadcast message: %v", err)
	}
}
