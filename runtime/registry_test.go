package runtime

import (
	"chatwire/domain"
	"chatwire/errors"
	"chatwire/protocol"
	"chatwire/repositories"
	"log/slog"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// collectingSink records every frame it is handed, in delivery order.
type collectingSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *collectingSink) Deliver(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

func (s *collectingSink) messages(t *testing.T) []domain.ChatMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var decoded []domain.ChatMessage
	for _, frame := range s.frames {
		response, err := protocol.DecodeResponse(frame)
		require.NoError(t, err)
		broadcast, ok := response.(protocol.ChatBroadcast)
		require.True(t, ok)
		decoded = append(decoded, broadcast.Message)
	}
	return decoded
}

func newTestRegistry(t *testing.T, recentLimit int) *Registry {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	repository, err := repositories.NewMessageRepository(db, slog.Default())
	req.NoError(err)
	t.Cleanup(func() { _ = repository.Close() })

	registry, err := NewRegistry(slog.Default(), repository, nil, recentLimit)
	req.NoError(err)
	return registry
}

// For N concurrent logins with the same name, exactly one must succeed:
// the availability check and the claim are a single atomic operation.
func Test_Login_Uniqueness_Under_Concurrency(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t, 0)

	const attempts = 32
	results := make(chan error, attempts)
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			results <- registry.Login("alice")
		}()
	}
	start.Done()
	done.Wait()
	close(results)

	var successes, taken int
	for err := range results {
		switch err {
		case nil:
			successes++
		case errors.ErrNameTaken:
			taken++
		default:
			req.FailNow("unexpected error", err)
		}
	}
	req.Equal(1, successes)
	req.Equal(attempts-1, taken)
}

func Test_Login_Logout_Membership(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t, 0)

	req.NoError(registry.Login("bob"))
	req.NoError(registry.Login("alice"))
	req.Equal([]string{"alice", "bob"}, registry.OnlineUsers())

	registry.Logout("bob")
	req.Equal([]string{"alice"}, registry.OnlineUsers())

	// Releasing a name that is not held is a no-op
	registry.Logout("bob")
	req.Equal([]string{"alice"}, registry.OnlineUsers())
}

// All sessions registered at append time observe broadcasts in the same
// order, whatever the interleaving of the submitters.
func Test_Broadcast_Ordering_Across_Sinks(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t, 0)

	sinks := []*collectingSink{{}, {}, {}}
	for _, sink := range sinks {
		registry.RegisterSession(uuid.NewString(), sink)
	}

	const perSender = 20
	var wg sync.WaitGroup
	for _, sender := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := registry.Append("hello", sender)
				require.NoError(t, err)
			}
		}(sender)
	}
	wg.Wait()

	reference := sinks[0].messages(t)
	req.Len(reference, 2*perSender)
	for i, m := range reference {
		if i > 0 {
			req.Greater(m.ID, reference[i-1].ID)
		}
	}
	for _, sink := range sinks[1:] {
		req.Equal(reference, sink.messages(t))
	}
}

// Append persists before it broadcasts and feeds the recent window that a
// later login snapshot returns.
func Test_Append_Feeds_Recent_Window(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t, 0)

	first, err := registry.Append("hi", "alice")
	req.NoError(err)
	req.Equal("hi", first.Body)
	req.Equal("alice", first.Sender)
	req.Positive(first.ID)

	second, err := registry.Append("there", "bob")
	req.NoError(err)
	req.Greater(second.ID, first.ID)

	recent := registry.RecentMessages()
	req.Equal([]domain.ChatMessage{first, second}, recent)

	// The snapshot is a copy: mutating it must not affect the registry
	recent[0].Body = "tampered"
	req.Equal("hi", registry.RecentMessages()[0].Body)
}

func Test_Recent_Window_Respects_Limit(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t, 3)

	for _, body := range []string{"one", "two", "three", "four", "five"} {
		_, err := registry.Append(body, "alice")
		req.NoError(err)
	}

	recent := registry.RecentMessages()
	req.Len(recent, 3)
	req.Equal("three", recent[0].Body)
	req.Equal("five", recent[2].Body)
}

func Test_Notices_Use_System_Sender(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t, 0)

	sink := &collectingSink{}
	registry.RegisterSession(uuid.NewString(), sink)

	registry.NotifyJoin("alice")
	registry.NotifyLeave("alice")

	messages := sink.messages(t)
	req.Len(messages, 2)
	req.Equal("alice has logged in!", messages[0].Body)
	req.Equal("alice has logged out!", messages[1].Body)
	for _, m := range messages {
		req.Equal(domain.SystemSender, m.Sender)
	}
}

func Test_Deregistered_Session_Stops_Receiving(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t, 0)

	sink := &collectingSink{}
	id := uuid.NewString()
	registry.RegisterSession(id, sink)

	_, err := registry.Append("one", "alice")
	req.NoError(err)

	registry.DeregisterSession(id)
	_, err = registry.Append("two", "alice")
	req.NoError(err)

	req.Len(sink.messages(t), 1)
}

func Test_Registry_Stats(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t, 0)

	registry.RegisterSession(uuid.NewString(), &collectingSink{})
	req.NoError(registry.Login("alice"))
	message, err := registry.Append("hi", "alice")
	req.NoError(err)

	stats := registry.Stats()
	req.Equal(1, stats.Sessions)
	req.Equal(1, stats.Online)
	req.Equal(1, stats.Messages)
	req.Equal(message.ID, stats.LastID)
}
