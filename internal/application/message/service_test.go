package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mystery-message-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore mimics the gated append and keyed removal of the DynamoDB stores
// under a single mutex. The concurrency tests below check the service against
// that contract; the store's own atomicity is covered in the dynamo package.
type fakeStore struct {
	mu     sync.Mutex
	claims map[string]string
	users  map[string]*fakeInbox
}

type fakeInbox struct {
	accepting bool
	msgs      []domain.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{claims: map[string]string{}, users: map[string]*fakeInbox{}}
}

func (f *fakeStore) addUser(userID, username string, verified, accepting bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = &fakeInbox{accepting: accepting}
	if verified {
		f.claims[username] = userID
	}
}

func (f *fakeStore) setAccepting(userID string, accepting bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID].accepting = accepting
}

func (f *fakeStore) snapshot(userID string) []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.users[userID].msgs...)
}

func (f *fakeStore) ClaimOwner(_ context.Context, kind, value string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind != domain.ClaimUsername {
		return "", fmt.Errorf("unexpected claim kind %q", kind)
	}
	if uid, ok := f.claims[value]; ok {
		return uid, nil
	}
	return "", fmt.Errorf("username claim not found: %w", domain.ErrNotFound)
}

func (f *fakeStore) AppendMessage(_ context.Context, userID string, msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if !u.accepting {
		return fmt.Errorf("user is not accepting messages: %w", domain.ErrRejected)
	}
	u.msgs = append(u.msgs, msg)
	return nil
}

func (f *fakeStore) ListMessages(_ context.Context, userID string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return append([]domain.Message(nil), u.msgs...), nil
}

func (f *fakeStore) RemoveMessage(_ context.Context, userID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	for i, m := range u.msgs {
		if m.MessageID == messageID {
			u.msgs = append(u.msgs[:i], u.msgs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("message not found: %w", domain.ErrNotFound)
}

// --- helpers ---

var (
	alice = &domain.Principal{UserID: "u-alice", Username: "alice"}
	bob   = &domain.Principal{UserID: "u-bob", Username: "bob"}
)

func newTestService(store *fakeStore, clock func() time.Time) *service {
	svc := NewService(store, store).(*service)
	if clock != nil {
		svc.now = clock
	}
	return svc
}

func send(t *testing.T, svc Service, username, content string) {
	t.Helper()
	require.NoError(t, svc.SendMessage(context.Background(), domain.SendMessageRequest{Username: username, Content: content}))
}

// --- SendMessage ---

func TestSendMessage_AppendsTrimmedContent(t *testing.T) {
	store := newFakeStore()
	store.addUser("u-alice", "alice", true, true)
	svc := newTestService(store, nil)

	send(t, svc, "alice", "   hi there  ")

	msgs := store.snapshot("u-alice")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi there", msgs[0].Content)
	assert.NotEmpty(t, msgs[0].MessageID)
	assert.False(t, msgs[0].CreatedAt.IsZero())
}

func TestSendMessage_ContentBounds(t *testing.T) {
	store := newFakeStore()
	store.addUser("u-alice", "alice", true, true)
	svc := newTestService(store, nil)

	for _, content := range []string{"", "   ", "a", " a ", strings.Repeat("x", domain.MessageMaxLength+1)} {
		err := svc.SendMessage(context.Background(), domain.SendMessageRequest{Username: "alice", Content: content})
		assert.ErrorIs(t, err, domain.ErrValidation, "content %q", content)
	}
	send(t, svc, "alice", strings.Repeat("é", domain.MessageMaxLength))
	send(t, svc, "alice", "ok")
	assert.Len(t, store.snapshot("u-alice"), 2)
}

func TestSendMessage_UnknownOrUnverifiedUser(t *testing.T) {
	store := newFakeStore()
	store.addUser("u-pending", "pending", false, true)
	svc := newTestService(store, nil)

	err := svc.SendMessage(context.Background(), domain.SendMessageRequest{Username: "nobody", Content: "hello"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = svc.SendMessage(context.Background(), domain.SendMessageRequest{Username: "pending", Content: "hello"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, store.snapshot("u-pending"))
}

func TestSendMessage_GateClosedNeverAppends(t *testing.T) {
	store := newFakeStore()
	store.addUser("u-alice", "alice", true, false)
	svc := newTestService(store, nil)

	for i := 0; i < 5; i++ {
		err := svc.SendMessage(context.Background(), domain.SendMessageRequest{Username: "alice", Content: "hello"})
		assert.ErrorIs(t, err, domain.ErrRejected)
	}
	assert.Empty(t, store.snapshot("u-alice"))
}

func TestSendMessage_ConcurrentSendsAllLand(t *testing.T) {
	store := newFakeStore()
	store.addUser("u-alice", "alice", true, true)
	svc := newTestService(store, nil)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- svc.SendMessage(context.Background(), domain.SendMessageRequest{Username: "alice", Content: fmt.Sprintf("message %d", i)})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	msgs := store.snapshot("u-alice")
	require.Len(t, msgs, n)
	seen := map[string]bool{}
	for _, m := range msgs {
		assert.False(t, seen[m.MessageID], "duplicate id %s", m.MessageID)
		seen[m.MessageID] = true
	}
}

func TestSendMessage_RacingGateToggle(t *testing.T) {
	store := newFakeStore()
	store.addUser("u-alice", "alice", true, true)
	svc := newTestService(store, nil)

	const n = 50
	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == n/2 {
				store.setAccepting("u-alice", false)
			}
			err := svc.SendMessage(context.Background(), domain.SendMessageRequest{Username: "alice", Content: fmt.Sprintf("message %d", i)})
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, domain.ErrRejected):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(n), accepted.Load()+rejected.Load())
	assert.Len(t, store.snapshot("u-alice"), int(accepted.Load()))

	// once the gate is observed closed, later sends never land
	before := len(store.snapshot("u-alice"))
	err := svc.SendMessage(context.Background(), domain.SendMessageRequest{Username: "alice", Content: "late"})
	assert.ErrorIs(t, err, domain.ErrRejected)
	assert.Len(t, store.snapshot("u-alice"), before)
}

// --- ListMessages ---

func TestListMessages_NewestFirst(t *testing.T) {
	store := newFakeStore()
	store.addUser("u-alice", "alice", true, true)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	offsets := map[string]time.Duration{"A": 0, "B": 2 * time.Second, "C": time.Second}
	var current string
	svc := newTestService(store, func() time.Time { return base.Add(offsets[current]) })

	for _, c := range []string{"A", "B", "C"} {
		current = c
		send(t, svc, "alice", "msg "+c)
	}

	msgs, err := svc.ListMessages(context.Background(), alice, "u-alice")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"msg B", "msg C", "msg A"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
}

func TestListMessages_Empty(t *testing.T) {
	store := newFakeStore()
	store.addUser("u-alice", "alice", true, true)

	msgs, err := newTestService(store, nil).ListMessages(context.Background(), alice, "u-alice")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestListMessages_RequiresOwner(t *testing.T) {
	store := newFakeStore()
	store.addUser("u-alice", "alice", true, true)
	svc := newTestService(store, nil)

	_, err := svc.ListMessages(context.Background(), nil, "u-alice")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.ListMessages(context.Background(), bob, "u-alice")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

// --- DeleteMessage ---

func TestDeleteMessage_RemovesOnlyTarget(t *testing.T) {
	store := newFakeStore()
	store.addUser("u-alice", "alice", true, true)
	svc := newTestService(store, nil)
	send(t, svc, "alice", "first")
	send(t, svc, "alice", "second")

	target := store.snapshot("u-alice")[0].MessageID
	require.NoError(t, svc.DeleteMessage(context.Background(), alice, "u-alice", target))

	left := store.snapshot("u-alice")
	require.Len(t, left, 1)
	assert.Equal(t, "second", left[0].Content)

	err := svc.DeleteMessage(context.Background(), alice, "u-alice", target)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteMessage_OtherUsersMessageIsNotFound(t *testing.T) {
	store := newFakeStore()
	store.addUser("u-alice", "alice", true, true)
	store.addUser("u-bob", "bob", true, true)
	svc := newTestService(store, nil)
	send(t, svc, "alice", "for alice")
	send(t, svc, "bob", "for bob")
	bobMsg := store.snapshot("u-bob")[0].MessageID

	err := svc.DeleteMessage(context.Background(), alice, "u-alice", bobMsg)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, store.snapshot("u-alice"), 1)
	assert.Len(t, store.snapshot("u-bob"), 1)
}

func TestDeleteMessage_RequiresOwner(t *testing.T) {
	store := newFakeStore()
	store.addUser("u-alice", "alice", true, true)
	svc := newTestService(store, nil)
	send(t, svc, "alice", "hello")
	id := store.snapshot("u-alice")[0].MessageID

	err := svc.DeleteMessage(context.Background(), bob, "u-alice", id)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Len(t, store.snapshot("u-alice"), 1)
}
