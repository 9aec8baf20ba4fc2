package auth

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/wapanel/internal/domain"
	"go.uber.org/zap"
)

type fakeUserRepo struct {
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
}

func (f *fakeUserRepo) GetActiveByEmail(ctx context.Context, email string) (*domain.User, error) {
	if user, ok := f.byEmail[email]; ok {
		return user, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) GetActiveByID(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := f.byID[id]; ok {
		return user, nil
	}
	return nil, domain.ErrNotFound
}

func newTestService(t *testing.T, users *fakeUserRepo) (*Service, *TokenManager) {
	t.Helper()

	tokens, err := NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	service, err := NewService(users, tokens, zap.NewNop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return service, tokens
}

func seedUser(t *testing.T, password string) (*fakeUserRepo, *domain.User) {
	t.Helper()

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	user := &domain.User{
		ID:           "user-1",
		Name:         "Operator",
		Email:        "op@example.com",
		PasswordHash: hash,
		IsActive:     true,
	}
	return &fakeUserRepo{
		byEmail: map[string]*domain.User{user.Email: user},
		byID:    map[string]*domain.User{user.ID: user},
	}, user
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	t.Parallel()

	tokens, err := NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	signed, err := tokens.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	userID, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if userID != "user-42" {
		t.Fatalf("subject = %q, want user-42", userID)
	}
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	t.Parallel()

	tokens, err := NewTokenManager("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	issuedAt := time.Now().Add(-time.Hour)
	tokens.now = func() time.Time { return issuedAt }
	signed, err := tokens.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tokens.now = time.Now
	if _, err := tokens.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenManager_WrongSecret(t *testing.T) {
	t.Parallel()

	issuer, _ := NewTokenManager("secret-a", time.Hour)
	verifier, _ := NewTokenManager("secret-b", time.Hour)

	signed, err := issuer.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestServiceLogin(t *testing.T) {
	t.Parallel()

	users, seeded := seedUser(t, "s3cret")
	service, tokens := newTestService(t, users)

	token, user, err := service.Login(context.Background(), "OP@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.ID != seeded.ID {
		t.Fatalf("user id = %s, want %s", user.ID, seeded.ID)
	}

	userID, err := tokens.Verify(token)
	if err != nil || userID != seeded.ID {
		t.Fatalf("issued token subject = %q, err = %v", userID, err)
	}
}

func TestServiceLogin_RejectsBadCredentials(t *testing.T) {
	t.Parallel()

	users, _ := seedUser(t, "s3cret")
	service, _ := newTestService(t, users)

	testCases := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "op@example.com", password: "nope"},
		{name: "unknown user", email: "ghost@example.com", password: "s3cret"},
		{name: "empty password", email: "op@example.com", password: ""},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := service.Login(context.Background(), tc.email, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestServiceAuthenticate_DeactivatedUser(t *testing.T) {
	t.Parallel()

	users, seeded := seedUser(t, "s3cret")
	service, tokens := newTestService(t, users)

	signed, err := tokens.Issue(seeded.ID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	delete(users.byID, seeded.ID)
	if _, err := service.Authenticate(context.Background(), signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Authenticate() error = %v, want ErrInvalidToken", err)
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	users, seeded := seedUser(t, "s3cret")
	service, tokens := newTestService(t, users)

	app := fiber.New()
	app.Use(Middleware(service))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(UserID(c))
	})

	signed, err := tokens.Issue(seeded.ID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+signed)

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != seeded.ID {
			t.Fatalf("body = %q, want user id", body)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	})
}
