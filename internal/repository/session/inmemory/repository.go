package inmemory

import (
	"context"
	"sync"

	"github.com/vidroom/server/internal/repository/session"
)

type repo struct {
	connections map[string]string // session id -> connection id
	mu          sync.RWMutex
}

func NewRepo() *repo {
	return &repo{
		connections: make(map[string]string),
	}
}

func (r *repo) Bind(ctx context.Context, sessionId, connectionId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[sessionId] = connectionId

	return nil
}

func (r *repo) Resolve(ctx context.Context, sessionId string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectionId, ok := r.connections[sessionId]
	if !ok {
		return "", session.ErrSessionNotFound
	}

	return connectionId, nil
}

func (r *repo) Unbind(ctx context.Context, sessionId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.connections, sessionId)

	return nil
}
