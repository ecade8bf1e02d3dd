package api_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Rrens/appstruct/internal/domain"
	"github.com/Rrens/appstruct/internal/llm"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]domain.User)}
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return domain.ErrAlreadyExists
		}
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memoryUsers) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

type memoryBlueprints struct {
	mu    sync.Mutex
	items []domain.Blueprint
}

func (m *memoryBlueprints) Create(_ context.Context, b *domain.Blueprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, *b)
	return nil
}

func (m *memoryBlueprints) ListByUser(_ context.Context, userID string) ([]domain.Blueprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Blueprint{}
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].UserID == userID {
			out = append(out, m.items[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type nopPinger struct{ err error }

func (p nopPinger) Ping(context.Context) error { return p.err }

// fakeProvider records calls and delegates to the configured functions
type fakeProvider struct {
	generate func(ctx context.Context, req llm.Request) (*llm.Response, error)
	stream   func(ctx context.Context, req llm.Request, emit llm.EmitFunc) error
	calls    atomic.Int32
}

func (f *fakeProvider) Name() string         { return "fake" }
func (f *fakeProvider) DefaultModel() string { return "fake-1" }
func (f *fakeProvider) IsConfigured() bool   { return true }

func (f *fakeProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.calls.Add(1)
	if f.generate == nil {
		return &llm.Response{Text: fakeMarkdown}, nil
	}
	return f.generate(ctx, req)
}

func (f *fakeProvider) GenerateStream(ctx context.Context, req llm.Request, emit llm.EmitFunc) error {
	f.calls.Add(1)
	if f.stream == nil {
		for _, part := range strings.SplitAfter(fakeMarkdown, "\n") {
			if part == "" {
				continue
			}
			if err := emit(part); err != nil {
				return err
			}
		}
		return nil
	}
	return f.stream(ctx, req, emit)
}

const fakeMarkdown = "# PetPals Blueprint\n\n## Project Summary\nShare pet photos.\n\n## Tech Stack\n- React\n"
