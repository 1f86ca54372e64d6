package wirebot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dsonbaker/wirebot/internal/otr"
	"github.com/dsonbaker/wirebot/internal/outbound"
	"github.com/dsonbaker/wirebot/internal/queue"
	"github.com/dsonbaker/wirebot/internal/ratchet"
)

func TestBotClientSendImageUploadsThenDelivers(t *testing.T) {
	var mu sync.Mutex
	var uploaded bool
	var sentMessages int
	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bots/assets":
			mu.Lock()
			uploaded = true
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"key": "k1", "token": "t1"})
		case "/bot/messages":
			mu.Lock()
			sentMessages++
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer platform.Close()

	store := ratchet.NewStore(t.TempDir(), "bot-1")
	manager := otr.NewManager(store)
	outboundClient := outbound.New(platform.URL, 2*time.Second, nil)
	q := queue.New(outboundClient, zerolog.Nop(), 8)
	defer q.Close()

	state := NewBotState("bot-1", "client-1", "tok-1", []string{"alice"}, store, manager)
	client := newBotClient(state, q)

	if err := client.SendImage([]byte{1, 2, 3}, "image/png"); err != nil {
		t.Fatalf("SendImage: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := uploaded && sentMessages > 0
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if !uploaded {
		t.Fatal("expected the asset to be uploaded")
	}
	// No conversation members have an established session yet, so the
	// fan-out produces empty recipients and the platform's 200 ends the
	// delivery without a recovery round (alice has no known device/prekey
	// to bootstrap against in this test).
	if sentMessages == 0 {
		t.Fatal("expected at least one POST /bot/messages for the asset reference")
	}
}
