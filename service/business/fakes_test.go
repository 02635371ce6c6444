package business

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pitabwire/util"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sokoapp/service-presence/service/models"
	"github.com/sokoapp/service-presence/service/profile"
	"github.com/sokoapp/service-presence/service/protocol"
)

// readResult lets tests feed either an envelope or a read error into the
// fake transport's inbound stream.
type readResult struct {
	env *protocol.Envelope
	err error
}

// fakeTransport is an in-memory Transport driven by channels.
type fakeTransport struct {
	inbound  chan readResult
	written  chan *protocol.Envelope
	closeCh  chan struct{}
	closeOne sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan readResult, 16),
		written: make(chan *protocol.Envelope, 64),
		closeCh: make(chan struct{}),
	}
}

// feed queues an inbound envelope built from the given payload.
func (ft *fakeTransport) feed(t *testing.T, envType string, payload any) {
	t.Helper()
	env, err := protocol.NewEnvelope(envType, payload)
	require.NoError(t, err)
	ft.inbound <- readResult{env: env}
}

func (ft *fakeTransport) feedErr(err error) {
	ft.inbound <- readResult{err: err}
}

func (ft *fakeTransport) ReadEnvelope() (*protocol.Envelope, error) {
	select {
	case r := <-ft.inbound:
		return r.env, r.err
	case <-ft.closeCh:
		return nil, errTransportClosed
	}
}

func (ft *fakeTransport) WriteEnvelope(env *protocol.Envelope) error {
	select {
	case <-ft.closeCh:
		return errTransportClosed
	default:
	}
	select {
	case ft.written <- env:
		return nil
	default:
		return errors.New("written buffer full")
	}
}

func (ft *fakeTransport) Close() error {
	ft.closeOne.Do(func() { close(ft.closeCh) })
	return nil
}

// awaitWritten returns the next envelope the connection wrote, or nil
// after the timeout.
func (ft *fakeTransport) awaitWritten(timeout time.Duration) *protocol.Envelope {
	select {
	case env := <-ft.written:
		return env
	case <-time.After(timeout):
		return nil
	}
}

// fakeProfiles resolves identities from a static map.
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*profile.Profile
	failWith error
	calls    int
}

func newFakeProfiles(profiles ...*profile.Profile) *fakeProfiles {
	byID := make(map[string]*profile.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	return &fakeProfiles{profiles: byID}
}

func (fp *fakeProfiles) GetByID(_ context.Context, profileID string) (*profile.Profile, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.calls++
	if fp.failWith != nil {
		return nil, fp.failWith
	}
	p, ok := fp.profiles[profileID]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return p, nil
}

// fakeMessageRepo is an in-memory MessageRepository.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*models.Message
	failWith error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*models.Message)}
}

func (fr *fakeMessageRepo) GetByID(_ context.Context, id string) (*models.Message, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fr.failWith != nil {
		return nil, fr.failWith
	}
	msg, ok := fr.messages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *msg
	return &clone, nil
}

func (fr *fakeMessageRepo) Create(ctx context.Context, message *models.Message) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fr.failWith != nil {
		return fr.failWith
	}
	if message.GetID() == "" {
		message.ID = util.IDString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	clone := *message
	fr.messages[message.GetID()] = &clone
	return nil
}

func (fr *fakeMessageRepo) Save(_ context.Context, message *models.Message) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fr.failWith != nil {
		return fr.failWith
	}
	clone := *message
	fr.messages[message.GetID()] = &clone
	return nil
}

func (fr *fakeMessageRepo) GetByConversationID(
	_ context.Context,
	conversationID string,
	limit int,
) ([]*models.Message, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	var out []*models.Message
	for _, msg := range fr.messages {
		if msg.ConversationID == conversationID {
			clone := *msg
			out = append(out, &clone)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (fr *fakeMessageRepo) stored(id string) *models.Message {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.messages[id]
}

// fakeConversationRepo is an in-memory ConversationRepository keyed by
// pair key, mirroring the unique index of the real store.
type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation // by ID
	byPairKey     map[string]*models.Conversation
	creates       int
	failWith      error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[string]*models.Conversation),
		byPairKey:     make(map[string]*models.Conversation),
	}
}

func (fr *fakeConversationRepo) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	conv, ok := fr.conversations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *conv
	return &clone, nil
}

func (fr *fakeConversationRepo) GetOneToOne(
	_ context.Context,
	profileA, profileB string,
) (*models.Conversation, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fr.failWith != nil {
		return nil, fr.failWith
	}
	conv, ok := fr.byPairKey[models.PairKeyFor(profileA, profileB)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *conv
	return &clone, nil
}

func (fr *fakeConversationRepo) Create(_ context.Context, conversation *models.Conversation) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fr.failWith != nil {
		return fr.failWith
	}
	fr.creates++
	if conversation.PairKey == "" {
		conversation.PairKey = models.PairKeyFor(conversation.ParticipantAID, conversation.ParticipantBID)
	}
	if existing, ok := fr.byPairKey[conversation.PairKey]; ok {
		*conversation = *existing
		return nil
	}
	if conversation.GetID() == "" {
		conversation.ID = util.IDString()
	}
	clone := *conversation
	fr.conversations[conversation.GetID()] = &clone
	fr.byPairKey[conversation.PairKey] = &clone
	return nil
}

func (fr *fakeConversationRepo) Save(_ context.Context, conversation *models.Conversation) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	clone := *conversation
	fr.conversations[conversation.GetID()] = &clone
	fr.byPairKey[conversation.PairKey] = &clone
	return nil
}

func (fr *fakeConversationRepo) count() int {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return len(fr.conversations)
}

func (fr *fakeConversationRepo) stored(id string) *models.Conversation {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.conversations[id]
}

// fakeParticipantRepo is an in-memory ParticipantRepository.
type fakeParticipantRepo struct {
	mu           sync.Mutex
	participants map[string]*models.Participant // by profile ID
	creates      int
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{participants: make(map[string]*models.Participant)}
}

func (fr *fakeParticipantRepo) GetByProfileID(_ context.Context, profileID string) (*models.Participant, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	p, ok := fr.participants[profileID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *p
	return &clone, nil
}

func (fr *fakeParticipantRepo) Create(_ context.Context, participant *models.Participant) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.creates++
	if existing, ok := fr.participants[participant.ProfileID]; ok {
		*participant = *existing
		return nil
	}
	if participant.GetID() == "" {
		participant.ID = util.IDString()
	}
	clone := *participant
	fr.participants[participant.ProfileID] = &clone
	return nil
}

func (fr *fakeParticipantRepo) Save(_ context.Context, participant *models.Participant) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	clone := *participant
	fr.participants[participant.ProfileID] = &clone
	return nil
}

// errTransportClosed stands in for whatever error a real transport
// returns once closed.
var errTransportClosed = errors.Join(io.EOF, errors.New("transport closed"))
