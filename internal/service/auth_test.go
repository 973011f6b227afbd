package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tahmid/codebench/internal/apperror"
	"github.com/tahmid/codebench/internal/auth"
	"github.com/tahmid/codebench/internal/model"
)

// mockUserRepo is an in-memory repository.UserRepository.
type mockUserRepo struct {
	users  map[string]*model.User // keyed by ID
	nextID int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) CreateUser(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Username == user.Username {
			return apperror.Conflict("username", user.Username)
		}
	}
	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) UserByID(_ context.Context, id string) (*model.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *user
	return &result, nil
}

func (m *mockUserRepo) UserByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	// Default bcrypt cost; registration tests pay it only a few times.
	return NewAuthService(newMockUserRepo(), tokens, auth.NewPasswordService(), testLogger())
}

func TestRegister_Success(t *testing.T) {
	svc := newTestAuthService(t)

	result, err := svc.Register(context.Background(), "alice", "alice@example.com", "s3cure-pass")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if result.User.ID == "" {
		t.Error("expected registered user to have an ID")
	}
	if result.Token == "" {
		t.Error("expected a token to be issued on registration")
	}
	if result.User.PasswordHash == "s3cure-pass" {
		t.Error("password stored in plaintext")
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc := newTestAuthService(t)

	if _, err := svc.Register(context.Background(), "alice", "", "s3cure-pass"); err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, err := svc.Register(context.Background(), "alice", "", "other-pass99")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestRegister_ShortUsername(t *testing.T) {
	svc := newTestAuthService(t)

	_, err := svc.Register(context.Background(), "ab", "", "s3cure-pass")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	svc := newTestAuthService(t)

	_, err := svc.Register(context.Background(), "alice", "", "short")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestLogin_Success(t *testing.T) {
	svc := newTestAuthService(t)

	if _, err := svc.Register(context.Background(), "alice", "", "s3cure-pass"); err != nil {
		t.Fatalf("setup: %v", err)
	}

	result, err := svc.Login(context.Background(), "alice", "s3cure-pass")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == "" {
		t.Error("expected a token on login")
	}
	if result.User.Username != "alice" {
		t.Errorf("Username = %q, want %q", result.User.Username, "alice")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc := newTestAuthService(t)

	if _, err := svc.Register(context.Background(), "alice", "", "s3cure-pass"); err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, err := svc.Login(context.Background(), "alice", "wrong-pass99")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	svc := newTestAuthService(t)

	// Unknown user and wrong password must be indistinguishable.
	_, err := svc.Login(context.Background(), "nobody", "whatever-pass")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestUserByID_RoundTrip(t *testing.T) {
	svc := newTestAuthService(t)

	registered, err := svc.Register(context.Background(), "alice", "alice@example.com", "s3cure-pass")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	user, err := svc.UserByID(context.Background(), registered.User.ID)
	if err != nil {
		t.Fatalf("UserByID() error = %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("Username = %q, want %q", user.Username, "alice")
	}
}
