package wirebot

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/dsonbaker/wirebot/internal/otr"
	"github.com/dsonbaker/wirebot/internal/ratchet"
	"github.com/dsonbaker/wirebot/internal/wireformat"
)

// handleCreateBot allocates a Session Store, issues 8*|members|+1 prekeys,
// persists the creation JSON, and responds 201 with the non-sentinel
// prekeys plus the sentinel last-resort prekey.
func (s *Service) handleCreateBot(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var data BotCreationData
	if err := json.Unmarshal(body, &data); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	store := ratchet.NewStore(s.cfg.StoreRoot, data.ID)
	manager := otr.NewManager(store)

	preKeys, lastPreKey, err := manager.InitializePreKeys(len(data.Conversation.Members))
	if err != nil {
		s.log.Error().Err(err).Str("bot_id", data.ID).Msg("failed to initialize prekeys")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := store.SaveCreationData(body); err != nil {
		s.log.Error().Err(err).Str("bot_id", data.ID).Msg("failed to persist bot creation data")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	members := make([]string, 0, len(data.Conversation.Members))
	for _, m := range data.Conversation.Members {
		members = append(members, m.ID)
	}
	state := NewBotState(data.ID, data.Client, data.Token, members, store, manager)
	s.cache.Put(data.ID, state)

	resp := BotCreationResponse{
		PreKeys:    make([]EncodedPreKey, len(preKeys)),
		LastPreKey: EncodedPreKey{ID: lastPreKey.ID, Key: lastPreKey.Key},
	}
	for i, pk := range preKeys {
		resp.PreKeys[i] = EncodedPreKey{ID: pk.ID, Key: pk.Key}
	}

	writeJSON(w, http.StatusCreated, resp)
}

// handleEvent hydrates the bot, then dispatches on MessageData.Type.
func (s *Service) handleEvent(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("id")

	body, err := readBody(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var msg MessageData
	if err := json.Unmarshal(body, &msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	state, err := s.cache.GetOrHydrate(botID, func() (*BotState, error) {
		return s.hydrateBotState(botID)
	})
	if err != nil {
		s.log.Error().Err(err).Str("bot_id", botID).Msg("failed to hydrate bot state")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	client := newBotClient(state, s.queue)

	switch msg.Type {
	case EventMessageAdd:
		var data MessageEventData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.dispatch(func() { s.handleMessageAdd(botID, msg.From, state, client, data) })

	case EventMemberJoin:
		var data MembershipEventData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, u := range data.UserIDs {
			state.AddMember(u)
		}
		s.dispatch(func() { s.handler.Handle(botID, MemberJoin{Joined: data.UserIDs}, client) })

	case EventMemberLeave:
		var data MembershipEventData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		left := data.UserIDs
		for _, u := range left {
			state.RemoveMember(u)
			if u == botID {
				s.cache.Evict(botID)
			}
		}
		s.dispatch(func() { s.handler.Handle(botID, MemberLeave{Left: left}, client) })

	case EventRename:
		var data RenameEventData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.dispatch(func() { s.handler.Handle(botID, Rename{Name: data.Name}, client) })

	default:
		s.log.Error().Str("type", string(msg.Type)).Str("bot_id", botID).Msg("unexpected event type")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleMessageAdd decrypts an inbound ciphertext, queues its delivery
// confirmation, and - if the decoded message carries text - delivers it
// to the user handler. Runs on a worker-pool goroutine.
//
// The envelope's top-level `from` names the sending user; `data.sender`
// and `data.recipient` are client ids of the sender's device and the
// bot's own device the ciphertext was addressed to, respectively. The
// OTR session is keyed by (user, their device), so decryption uses
// (fromUser, data.Sender) - never data.Recipient, which just echoes this
// bot's own client id back and identifies no session.
func (s *Service) handleMessageAdd(botID, fromUser string, state *BotState, client *BotClient, data MessageEventData) {
	plaintext, err := state.Manager().Decrypt(fromUser, data.Sender, data.Text)
	if err != nil {
		s.log.Error().Err(err).Str("bot_id", botID).Str("from", fromUser).Str("sender_client", data.Sender).Msg("failed to decrypt inbound message")
		return
	}

	decoded, err := wireformat.Unmarshal(plaintext)
	if err != nil {
		s.log.Error().Err(err).Str("bot_id", botID).Msg("failed to decode decrypted message")
		return
	}

	state.RecordDevice(fromUser, data.Sender)

	if err := client.sendConfirmation(decoded.MessageID()); err != nil {
		s.log.Error().Err(err).Str("bot_id", botID).Msg("failed to queue confirmation")
	}

	if decoded.Text != nil {
		s.handler.Handle(botID, Message{From: fromUser, Text: decoded.Text.Content}, client)
	}
}

// hydrateBotState loads a bot's persisted creation data and rebuilds its
// BotState from disk, used when an event arrives for a bot not currently
// in the cache.
func (s *Service) hydrateBotState(botID string) (*BotState, error) {
	store := ratchet.NewStore(s.cfg.StoreRoot, botID)
	manager := otr.NewManager(store)
	raw, err := store.LoadCreationData()
	if err != nil {
		return nil, err
	}
	var data BotCreationData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	members := make([]string, 0, len(data.Conversation.Members))
	for _, m := range data.Conversation.Members {
		members = append(members, m.ID)
	}
	return NewBotState(data.ID, data.Client, data.Token, members, store, manager), nil
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
