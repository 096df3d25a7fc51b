package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayush/notsodumb/backend/internal/models"
	"github.com/ayush/notsodumb/backend/internal/store"
)

type memStore struct {
	mu         sync.Mutex
	challenges map[string]models.Challenge
	users      map[string]*models.User
	nextID     int
}

func newMemStore() *memStore {
	return &memStore{challenges: map[string]models.Challenge{}, users: map[string]*models.User{}}
}

func (m *memStore) UpsertChallenge(_ context.Context, c models.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[c.WalletAddress] = c
	return nil
}

func (m *memStore) GetChallenge(_ context.Context, address string) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[address]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (m *memStore) ConsumeChallenge(_ context.Context, address, challenge string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[address]
	if !ok || c.Challenge != challenge || !now.Before(c.ExpiresAt) {
		return store.ErrNotFound
	}
	delete(m.challenges, address)
	return nil
}

// staleReads serves the first challenge it reads for every later read, as if
// all verifiers loaded the row before any of them deleted it.
type staleReads struct {
	*memStore
	first *models.Challenge
}

func (s *staleReads) GetChallenge(ctx context.Context, address string) (*models.Challenge, error) {
	if s.first != nil {
		c := *s.first
		return &c, nil
	}
	c, err := s.memStore.GetChallenge(ctx, address)
	if err == nil {
		s.first = c
	}
	return c, err
}

func (m *memStore) DeleteExpiredChallenges(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, c := range m.challenges {
		if c.ExpiresAt.Before(now) {
			delete(m.challenges, k)
		}
	}
	return nil
}

func (m *memStore) newUser(u models.User) *models.User {
	m.nextID++
	u.ID = fmt.Sprintf("user-%d", m.nextID)
	m.users[u.ID] = &u
	return &u
}

func (m *memStore) FindOrCreateWalletUser(_ context.Context, address string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.WalletAddress == address {
			return u, nil
		}
	}
	return m.newUser(models.User{WalletAddress: address}), nil
}

func (m *memStore) CreateUser(_ context.Context, username, email, hashed string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return nil, fmt.Errorf("duplicate email")
		}
	}
	return m.newUser(models.User{Username: username, Email: email, Password: hashed}), nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}
