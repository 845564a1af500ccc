package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "mcpauth/pkg/platform/audit"
	"mcpauth/pkg/platform/audit/store/memory"
	"mcpauth/pkg/requestcontext"
)

const firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		UserID: "octocat",
		Action: string(audit.EventAuthorizationCompleted),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "octocat")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventAuthorizationCompleted), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			UserID: "octocat",
			Action: string(audit.EventTokenIssued),
		}))
	}

	pub.Close()
	pub.Close()

	events, err := store.ListByUser(context.Background(), "octocat")
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

// blockingStore holds every append until release is closed.
type blockingStore struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingStore) Append(context.Context, audit.Event) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return nil
}

func TestPublisher_BufferFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{}), started: make(chan struct{})}
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()
	defer close(store.release)

	ev := audit.Event{Action: string(audit.EventConsentPrompted)}
	require.NoError(t, pub.Emit(context.Background(), ev))
	<-store.started // worker holds the first event
	require.NoError(t, pub.Emit(context.Background(), ev))

	assert.ErrorIs(t, pub.Emit(context.Background(), ev), ErrBufferFull)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.Emit(ctx, ev), context.Canceled)
}

func TestPublisher_EnrichesFromContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.9", firefoxUA)
	ctx = requestcontext.WithTime(ctx, fixed)

	require.NoError(t, pub.Emit(ctx, audit.Event{
		UserID:   "octocat",
		ClientID: "abc",
		Action:   string(audit.EventAuthFailed),
		Reason:   "upstream_error",
	}))

	events, err := pub.List(context.Background(), "octocat")
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, fixed, e.Timestamp)
	assert.Equal(t, audit.CategorySecurity, e.Category)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "203.0.113.9", e.IP)
	assert.Equal(t, firefoxUA, e.UserAgent)
	assert.Equal(t, "Firefox 120.0", e.Browser)
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		UserID:    "octocat",
		Action:    string(audit.EventClientRegistered),
		Timestamp: customTime,
	}))

	events, err := pub.List(context.Background(), "octocat")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

type appendOnly struct{}

func (appendOnly) Append(context.Context, audit.Event) error { return nil }

func TestPublisher_ListUnsupported(t *testing.T) {
	pub := NewPublisher(appendOnly{})
	_, err := pub.List(context.Background(), "octocat")
	assert.ErrorIs(t, err, audit.ErrNotListable)

	pub = NewPublisher(audit.Fanout(appendOnly{}))
	_, err = pub.List(context.Background(), "octocat")
	assert.ErrorIs(t, err, audit.ErrNotListable)
}

func TestPublisher_ListThroughFanout(t *testing.T) {
	mem := memory.NewInMemoryStore()
	pub := NewPublisher(audit.Fanout(appendOnly{}, mem))
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		UserID: "octocat",
		Action: string(audit.EventConsentGranted),
	}))

	events, err := pub.List(context.Background(), "octocat")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventConsentGranted), events[0].Action)
}

func TestFanoutJoinsErrors(t *testing.T) {
	mem := memory.NewInMemoryStore()
	boom := errors.New("boom")
	store := audit.Fanout(mem, failing{err: boom})

	err := store.Append(context.Background(), audit.Event{UserID: "u", Action: "a"})
	assert.ErrorIs(t, err, boom)

	events, _ := mem.ListByUser(context.Background(), "u")
	assert.Len(t, events, 1, "healthy stores still receive the event")
}

type failing struct{ err error }

func (f failing) Append(context.Context, audit.Event) error { return f.err }
