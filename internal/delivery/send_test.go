package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dsonbaker/wirebot/internal/otr"
	"github.com/dsonbaker/wirebot/internal/outbound"
	"github.com/dsonbaker/wirebot/internal/ratchet"
	"github.com/dsonbaker/wirebot/internal/wire"
)

func TestSendEncryptedMessageRecoversFromMissingDevices(t *testing.T) {
	peerStore := ratchet.NewStore(t.TempDir(), "peer-bot")
	peerPreKey, err := peerStore.NewPreKey(0)
	if err != nil {
		t.Fatalf("peerStore.NewPreKey: %v", err)
	}

	sendCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bot/messages":
			sendCount++
			var req wire.MessageRequest
			json.NewDecoder(r.Body).Decode(&req)
			if sendCount == 1 {
				if len(req.Recipients) != 0 {
					t.Fatalf("expected empty recipients on first send, got %+v", req.Recipients)
				}
				w.WriteHeader(http.StatusPreconditionFailed)
				json.NewEncoder(w).Encode(wire.Devices{Missing: map[string][]string{"alice": {"d1"}}})
				return
			}
			if req.Recipients["alice"]["d1"] == "" {
				t.Fatalf("expected a recovered ciphertext for alice/d1 on second send, got %+v", req.Recipients)
			}
			w.WriteHeader(http.StatusOK)
		case "/bot/users/prekeys":
			json.NewEncoder(w).Encode(wire.DevicePreKeys{
				"alice": {"d1": wire.EncodedPreKey{ID: peerPreKey.ID, Key: peerPreKey.Key}},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	store := ratchet.NewStore(t.TempDir(), "my-bot")
	manager := otr.NewManager(store)
	client := outbound.New(srv.URL, 2*time.Second, nil)

	var recovered map[string][]string
	err = SendEncryptedMessage(context.Background(), manager, client, "tok", "my-bot", []byte("hi"), map[string][]string{}, func(missing map[string][]string) {
		recovered = missing
	})
	if err != nil {
		t.Fatalf("SendEncryptedMessage: %v", err)
	}
	if sendCount != 2 {
		t.Fatalf("expected exactly 2 POST /bot/messages calls, got %d", sendCount)
	}
	if len(recovered["alice"]) != 1 {
		t.Fatalf("expected onRecovered to report alice's missing device, got %+v", recovered)
	}
}

func TestSendEncryptedMessageFailsAfterSecondMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bot/messages":
			w.WriteHeader(http.StatusPreconditionFailed)
			json.NewEncoder(w).Encode(wire.Devices{Missing: map[string][]string{"alice": {"d1"}}})
		case "/bot/users/prekeys":
			json.NewEncoder(w).Encode(wire.DevicePreKeys{})
		}
	}))
	defer srv.Close()

	store := ratchet.NewStore(t.TempDir(), "my-bot")
	manager := otr.NewManager(store)
	client := outbound.New(srv.URL, 2*time.Second, nil)

	err := SendEncryptedMessage(context.Background(), manager, client, "tok", "my-bot", []byte("hi"), map[string][]string{}, nil)
	if err == nil {
		t.Fatal("expected an error when devices are still missing after one recovery round")
	}
}

func TestSendEncryptedMessageNoMissingDevicesSucceedsInOneRound(t *testing.T) {
	sendCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot/messages" {
			t.Fatalf("unexpected call to %s", r.URL.Path)
		}
		sendCount++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := ratchet.NewStore(t.TempDir(), "my-bot")
	manager := otr.NewManager(store)
	client := outbound.New(srv.URL, 2*time.Second, nil)

	err := SendEncryptedMessage(context.Background(), manager, client, "tok", "my-bot", []byte("hi"), map[string][]string{}, nil)
	if err != nil {
		t.Fatalf("SendEncryptedMessage: %v", err)
	}
	if sendCount != 1 {
		t.Fatalf("expected exactly 1 POST /bot/messages call when no devices are missing, got %d", sendCount)
	}
}
