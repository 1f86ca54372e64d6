package wirebot

import (
	"errors"
	"testing"

	"github.com/dsonbaker/wirebot/internal/otr"
	"github.com/dsonbaker/wirebot/internal/ratchet"
)

func TestErrMissingPreKeyClassifiesManagerFailure(t *testing.T) {
	store := ratchet.NewStore(t.TempDir(), "bot")
	manager := otr.NewManager(store)

	_, err := manager.Encrypt("alice", "d1", []byte("hi"), nil)
	if !errors.Is(err, ErrMissingPreKey) {
		t.Fatalf("got error %v, want it to match ErrMissingPreKey", err)
	}
}
