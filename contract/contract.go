//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chatwire/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Sink is the outbound side of one connected session. Deliver hands an
// encoded wire unit to the session's own write path and must never block:
// the registry calls it while holding its lock, and one stalled peer must
// not delay broadcasts to the others.
type Sink interface {
	Deliver(frame []byte)
}

// RegistryStats is a point-in-time snapshot of the shared state, read
// under the registry lock.
type RegistryStats struct {
	Sessions int
	Online   int
	Messages int
	LastID   int64
}

// IRegistry is the shared broadcast/membership/message-log authority.
type IRegistry interface {
	RegisterSession(id string, sink Sink)
	DeregisterSession(id string)
	Login(username string) error
	Logout(username string)
	Append(body, sender string) (domain.ChatMessage, error)
	Notice(body string)
	NotifyJoin(username string)
	NotifyLeave(username string)
	OnlineUsers() []string
	RecentMessages() []domain.ChatMessage
	Stats() RegistryStats
}
