package server

import (
	"context"
	"testing"

	"socialdb/internal/auth"
	"socialdb/internal/config"
	"socialdb/internal/models"
	"socialdb/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserRepository is a mock of the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	args := m.Called(ctx, username, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockPostRepository is a mock of the PostRepository interface
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Create(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) ListByOwner(ctx context.Context, ownerID uint) ([]*models.Post, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) UpdateOwned(ctx context.Context, id, ownerID uint, text string) (*models.Post, error) {
	args := m.Called(ctx, id, ownerID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) DeleteOwned(ctx context.Context, id, ownerID uint) (*models.Post, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

// newTestServer builds a Server with a miniredis-backed session store and the
// given repository mocks. A nil userRepo gets a stand-in that resolves every
// account lookup, for tests that only exercise posts or sessions. Construct
// the struct directly so Prometheus collectors are not re-registered per test.
func newTestServer(t *testing.T, userRepo *MockUserRepository, postRepo *MockPostRepository) *Server {
	t.Helper()

	if userRepo == nil {
		userRepo = new(MockUserRepository)
		userRepo.On("GetByID", mock.Anything, mock.Anything).
			Return(&models.User{ID: 1, Username: "alice"}, nil).Maybe()
	}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tokens, err := auth.NewTokenService("test-secret")
	require.NoError(t, err)

	return &Server{
		config:   &config.Config{JWTSecret: "test-secret"},
		redis:    rdb,
		tokens:   tokens,
		sessions: session.NewStore(rdb),
		userRepo: userRepo,
		postRepo: postRepo,
	}
}

// authSession creates a live session for the given identity and returns the
// cookie value to send with requests.
func authSession(t *testing.T, s *Server, userID uint, username string) string {
	t.Helper()

	token, err := s.tokens.Issue(userID, username)
	require.NoError(t, err)

	sid, err := s.sessions.Create(context.Background(), token)
	require.NoError(t, err)
	return sid
}
