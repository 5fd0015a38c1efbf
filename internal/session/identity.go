package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IdentityKey is the fixed key the session identifier is persisted under.
const IdentityKey = "chatbotSessionId"

const identitySuffixLen = 9

// IdentityStore is the local key-value storage the session identifier survives restarts in. One store
// corresponds to one browser profile: every client sharing a store shares the identifier.
type IdentityStore interface {
	// Identity returns the stored value under key, and false if nothing is stored.
	Identity(ctx context.Context, key string) (string, bool, error)
	SetIdentity(ctx context.Context, key, value string) error
}

// NewIdentifier generates a fresh identifier of the form session_<unix-millis>_<random>.
func NewIdentifier(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:identitySuffixLen]
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), suffix)
}

// LoadIdentity returns the identifier held by store, creating and persisting a new one if the store has
// none. An existing identifier is never rewritten.
func LoadIdentity(ctx context.Context, store IdentityStore) (string, error) {
	return loadIdentity(ctx, store, time.Now)
}

func loadIdentity(ctx context.Context, store IdentityStore, now func() time.Time) (string, error) {
	id, ok, err := store.Identity(ctx, IdentityKey)
	if err != nil {
		return "", fmt.Errorf("failed to read session identifier: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}

	id = NewIdentifier(now())
	if err := store.SetIdentity(ctx, IdentityKey, id); err != nil {
		return "", fmt.Errorf("failed to persist session identifier: %w", err)
	}
	return id, nil
}

// MemoryIdentityStore is an IdentityStore that lives only as long as the process. It backs
// ephemeral clients and tests.
type MemoryIdentityStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryIdentityStore returns an empty in-memory store.
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{values: make(map[string]string)}
}

// Identity implements IdentityStore.
func (m *MemoryIdentityStore) Identity(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	return v, ok, nil
}

// SetIdentity implements IdentityStore.
func (m *MemoryIdentityStore) SetIdentity(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}
