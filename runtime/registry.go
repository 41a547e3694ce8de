package runtime

import (
	"chatwire/contract"
	"chatwire/domain"
	"chatwire/errors"
	"chatwire/moderation"
	"chatwire/protocol"
	"chatwire/repositories"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"
)

// Registry is the single point of mutual exclusion for the logged-in
// username set, the active session sinks, and the message log (both the
// in-memory recent window and the durable store).
//
// Every mutating operation and every snapshot read runs under one mutex so
// a reader never observes a half-applied change. Append persists before it
// broadcasts, so no client can observe a message that is not yet durable.
// Fan-out happens through non-blocking sinks; the lock is never held
// across network I/O.
type Registry struct {
	mu         sync.Mutex
	log        *slog.Logger
	repository repositories.IMessageRepository
	moderator  *moderation.Moderator

	sinks       map[string]contract.Sink
	online      map[string]struct{}
	recent      []domain.ChatMessage
	recentLimit int
}

// NewRegistry builds the registry and loads the most recent window of the
// durable log, in chronological order. The moderator may be nil to disable
// censoring.
func NewRegistry(log *slog.Logger, repository repositories.IMessageRepository,
	moderator *moderation.Moderator, recentLimit int) (*Registry, error) {
	recent, err := repository.LoadRecent(recentLimit)
	if err != nil {
		return nil, fmt.Errorf("loading recent messages: %w", err)
	}
	log.Info(fmt.Sprintf("%d recent messages loaded from the store", len(recent)))

	return &Registry{
		log:         log,
		repository:  repository,
		moderator:   moderator,
		sinks:       make(map[string]contract.Sink),
		online:      make(map[string]struct{}),
		recent:      recent,
		recentLimit: recentLimit,
	}, nil
}

// RegisterSession adds a connection's sink to the broadcast set. Sessions
// register at accept time; broadcasts reach every connected client whether
// logged in or not.
func (r *Registry) RegisterSession(id string, sink contract.Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[id] = sink
}

func (r *Registry) DeregisterSession(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, id)
}

// Login claims a username atomically. The availability check and the
// insertion happen under the same lock acquisition, so two concurrent
// logins with the same name can never both succeed.
func (r *Registry) Login(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.online[username]; taken {
		return errors.ErrNameTaken
	}
	r.online[username] = struct{}{}
	return nil
}

// Logout releases a username. Releasing a name that is not held is a no-op.
func (r *Registry) Logout(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.online, username)
}

// Append accepts one chat message: moderates the body, persists it (the
// store assigns the id), appends it to the recent window, and fans the
// encoded broadcast out to every registered session, sender included.
//
// The whole sequence is one atomic operation under the registry lock, which
// gives the log a global total order that every session observes.
func (r *Registry) Append(body, sender string) (domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendLocked(body, sender)
}

func (r *Registry) appendLocked(body, sender string) (domain.ChatMessage, error) {
	if r.moderator != nil && sender != domain.SystemSender {
		info := whatlanggo.Detect(body)
		sanitized, foundWords := r.moderator.Censor(body)
		if len(foundWords) > 0 {
			r.log.Info("Censored message",
				"author", sender,
				"words", len(foundWords),
				"lang", info.Lang.Iso6391())
		}
		body = sanitized
	}

	timestamp := time.Now().UTC().Unix()
	id, err := r.repository.Append(body, sender, timestamp)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("persisting message: %w", err)
	}

	message := domain.ChatMessage{ID: id, Body: body, Sender: sender, Timestamp: timestamp}
	r.recent = append(r.recent, message)
	if r.recentLimit > 0 && len(r.recent) > r.recentLimit {
		r.recent = r.recent[len(r.recent)-r.recentLimit:]
	}

	response := protocol.NewChatResponse()
	if err := response.SetMessage(message); err != nil {
		return domain.ChatMessage{}, err
	}
	frame, err := response.Encode()
	if err != nil {
		return domain.ChatMessage{}, err
	}
	for _, sink := range r.sinks {
		sink.Deliver(frame)
	}
	return message, nil
}

// Notice broadcasts a system message under the server identity.
func (r *Registry) Notice(body string) {
	if _, err := r.Append(body, domain.SystemSender); err != nil {
		r.log.Error("Failed to broadcast system notice", "error", err)
	}
}

func (r *Registry) NotifyJoin(username string) {
	r.Notice(username + " has logged in!")
}

func (r *Registry) NotifyLeave(username string) {
	r.Notice(username + " has logged out!")
}

// OnlineUsers snapshots the logged-in username set, sorted for stable output.
func (r *Registry) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := lo.Keys(r.online)
	sort.Strings(users)
	return users
}

// RecentMessages snapshots the in-memory recent window. The returned slice
// is a copy; callers may hold it without racing the registry.
func (r *Registry) RecentMessages() []domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ChatMessage(nil), r.recent...)
}

func (r *Registry) Stats() contract.RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := contract.RegistryStats{
		Sessions: len(r.sinks),
		Online:   len(r.online),
		Messages: len(r.recent),
	}
	if len(r.recent) > 0 {
		stats.LastID = r.recent[len(r.recent)-1].ID
	}
	return stats
}
