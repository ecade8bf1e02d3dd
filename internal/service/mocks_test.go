package service

import (
	"context"
	"sync"

	"github.com/Rrens/appstruct/internal/domain"
	"github.com/Rrens/appstruct/internal/llm"
	"github.com/Rrens/appstruct/internal/observability"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository mocks the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	args := m.Called(ctx, email, username)
	return args.Bool(0), args.Error(1)
}

// MockBlueprintRepository mocks the BlueprintRepository interface
type MockBlueprintRepository struct {
	mock.Mock
}

func (m *MockBlueprintRepository) Create(ctx context.Context, blueprint *domain.Blueprint) error {
	args := m.Called(ctx, blueprint)
	return args.Error(0)
}

func (m *MockBlueprintRepository) ListByUser(ctx context.Context, userID string) ([]domain.Blueprint, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Blueprint), args.Error(1)
}

// MockBlueprintCache mocks the BlueprintCache interface
type MockBlueprintCache struct {
	mock.Mock
}

func (m *MockBlueprintCache) Get(ctx context.Context, userID string) ([]domain.Blueprint, bool, int64, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Get(2).(int64), args.Error(3)
	}
	return args.Get(0).([]domain.Blueprint), args.Bool(1), args.Get(2).(int64), args.Error(3)
}

func (m *MockBlueprintCache) Set(ctx context.Context, userID string, version int64, blueprints []domain.Blueprint) error {
	args := m.Called(ctx, userID, version, blueprints)
	return args.Error(0)
}

func (m *MockBlueprintCache) Invalidate(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockProvider mocks llm.Provider. Stream fragments are configured through
// the Fragments field and replayed before the mocked error is returned.
type MockProvider struct {
	mock.Mock
	Fragments []string
}

func (m *MockProvider) Name() string         { return "mock" }
func (m *MockProvider) DefaultModel() string { return "mock-model" }
func (m *MockProvider) IsConfigured() bool   { return true }

func (m *MockProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

func (m *MockProvider) GenerateStream(ctx context.Context, req llm.Request, emit llm.EmitFunc) error {
	args := m.Called(ctx, req)
	for _, f := range m.Fragments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(f); err != nil {
			return err
		}
	}
	return args.Error(0)
}

// recordingSink collects emitted events
type recordingSink struct {
	mu     sync.Mutex
	events []observability.Event
}

func (r *recordingSink) Emit(_ context.Context, e observability.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}
