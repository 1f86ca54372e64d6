package wirebot

import (
	"sync"

	"github.com/elliotchance/orderedmap/v3"
	"go.mau.fi/util/exsync"

	"github.com/dsonbaker/wirebot/internal/otr"
	"github.com/dsonbaker/wirebot/internal/ratchet"
)

// BotState is one bot's entire mutable footprint, guarded by a single
// lock. Splitting conversation membership, missing-devices bookkeeping,
// the session store handle, and the OTR manager handle across
// separate locks invites deadlock the moment an operation needs two of
// them together and takes the locks in an inconsistent order. One mutex
// over one struct removes the ordering question entirely.
type BotState struct {
	mu sync.Mutex

	id       string
	clientID string
	token    string

	members      map[string]struct{}
	knownDevices *orderedmap.OrderedMap[string, *exsync.Set[string]]

	store   *ratchet.Store
	manager *otr.Manager
}

// NewBotState builds the state for a newly created bot, seeded with the
// members of the conversation it was added to. The outbound Request Queue
// is not part of BotState: one single-threaded reactor owns the outbound
// HTTPS client for the whole process, not one per bot, so Service injects
// its shared *queue.Queue when it builds a BotClient rather than BotState
// holding one itself.
func NewBotState(id, clientID, token string, members []string, store *ratchet.Store, manager *otr.Manager) *BotState {
	s := &BotState{
		id:           id,
		clientID:     clientID,
		token:        token,
		members:      make(map[string]struct{}, len(members)),
		knownDevices: orderedmap.NewOrderedMap[string, *exsync.Set[string]](),
		store:        store,
		manager:      manager,
	}
	for _, m := range members {
		s.members[m] = struct{}{}
	}
	return s
}

func (s *BotState) ID() string { return s.id }

// AddMember records a user joining the conversation.
func (s *BotState) AddMember(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[userID] = struct{}{}
}

// RemoveMember records a user leaving the conversation, dropping any
// devices known for them - a departed user's devices are never valid
// recipients again.
func (s *BotState) RemoveMember(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, userID)
	s.knownDevices.Delete(userID)
}

// Members returns a snapshot of the current conversation membership.
func (s *BotState) Members() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	return out
}

// RecordDevice notes that (userID, clientID) is a device this bot has
// bootstrapped or been told about, so future fan-out includes it without
// another missing-devices round trip.
func (s *BotState) RecordDevice(userID, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.knownDevices.Get(userID)
	if !ok {
		set = exsync.NewSet[string]()
		s.knownDevices.Set(userID, set)
	}
	set.Add(clientID)
}

// KnownDevices returns a snapshot of every device recorded for every
// member still in the conversation, in the shape SendEncryptedMessage's
// fan-out expects.
func (s *BotState) KnownDevices() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, s.knownDevices.Len())
	for _, userID := range s.knownDevices.Keys() {
		if _, stillMember := s.members[userID]; !stillMember {
			continue
		}
		set, _ := s.knownDevices.Get(userID)
		out[userID] = set.AsList()
	}
	return out
}

// RecordMissingResponse folds a 412 response's reported devices into the
// known-device set, since the caller is about to bootstrap sessions with
// exactly those devices.
func (s *BotState) RecordMissingResponse(missing map[string][]string) {
	for userID, clients := range missing {
		for _, clientID := range clients {
			s.RecordDevice(userID, clientID)
		}
	}
}

func (s *BotState) Store() *ratchet.Store { return s.store }
func (s *BotState) Manager() *otr.Manager { return s.manager }
func (s *BotState) ClientID() string      { return s.clientID }
func (s *BotState) Token() string         { return s.token }
