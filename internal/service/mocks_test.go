package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"showroom/internal/activity"
	"showroom/internal/events"
	"showroom/internal/model"
	"showroom/internal/repository"
	"showroom/internal/session"
)

// MockIdentityRepository is a mock implementation of IdentityRepository.
type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) CreateWithProfile(ctx context.Context, identity *model.Identity) (*model.Profile, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *MockIdentityRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

func (m *MockIdentityRepository) FindByEmail(ctx context.Context, email string) (*model.Identity, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

func (m *MockIdentityRepository) ConfirmEmail(ctx context.Context, id uuid.UUID, at time.Time) (*model.Profile, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *MockIdentityRepository) TouchSignIn(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreRefreshToken(ctx context.Context, tokenID string, identityID string, email string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, identityID, email, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (string, string, error) {
	args := m.Called(ctx, tokenID)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *MockTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenStore) StoreConfirmationToken(ctx context.Context, token string, identityID string, ttl time.Duration) error {
	args := m.Called(ctx, token, identityID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) ConsumeConfirmationToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

// MockMailer is a mock implementation of Mailer.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendConfirmation(ctx context.Context, to, link string) error {
	args := m.Called(ctx, to, link)
	return args.Error(0)
}

// MockPublisher is a mock implementation of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n events.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockProfileRepository is a mock implementation of ProfileRepository.
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) Create(ctx context.Context, profile *model.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockProfileRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *MockProfileRepository) List(ctx context.Context, status model.ProfileStatus) ([]model.Profile, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Profile), args.Error(1)
}

func (m *MockProfileRepository) UpdateRoleStatus(ctx context.Context, id uuid.UUID, role model.Role, status model.ProfileStatus) error {
	args := m.Called(ctx, id, role, status)
	return args.Error(0)
}

// MockCatalogRepository is a mock implementation of CatalogRepository.
type MockCatalogRepository[T any] struct {
	mock.Mock
}

func (m *MockCatalogRepository[T]) Create(ctx context.Context, row *T) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockCatalogRepository[T]) Update(ctx context.Context, row *T) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockCatalogRepository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCatalogRepository[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*T), args.Error(1)
}

func (m *MockCatalogRepository[T]) FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]T, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]T), args.Error(1)
}

func (m *MockCatalogRepository[T]) List(ctx context.Context, opts repository.ListOptions) ([]T, int64, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]T), args.Get(1).(int64), args.Error(2)
}

func (m *MockCatalogRepository[T]) ReplaceAssociation(ctx context.Context, row *T, association string, values interface{}) error {
	args := m.Called(ctx, row, association, values)
	return args.Error(0)
}

// WithTransaction runs fn against the mock itself.
func (m *MockCatalogRepository[T]) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.CatalogRepository[T]) error) error {
	return fn(ctx, m)
}

// recorder collects activity events.
type recorder struct {
	mu     sync.Mutex
	events []activity.Event
}

func (r *recorder) Record(_ context.Context, e activity.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []activity.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]activity.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func actorState(role model.Role, status model.ProfileStatus) (session.State, uuid.UUID) {
	id := uuid.New()
	return session.Resolved(
		session.Identity{ID: id.String(), Email: "actor@example.com"},
		&model.Profile{ID: id, Email: "actor@example.com", Role: role, Status: status},
	), id
}
