package spaceport

import (
	"context"
	"fmt"
	"time"
)

// User represents a Spaceport account.
type User struct {
	// ID is the unique account identifier
	ID string `json:"id"`
	// Email is the account email address
	Email string `json:"email"`
	// Name is the display name
	Name string `json:"name"`
	// CreatedAt is when the account was created
	CreatedAt time.Time `json:"created_at"`
}

// Session represents an authenticated session. The Token field carries the
// credential attached to subsequent requests and used to authenticate
// realtime channel subscriptions.
type Session struct {
	// ID is the unique session identifier
	ID string `json:"id"`
	// UserID is the account this session belongs to
	UserID string `json:"user_id"`
	// Token is the session access token
	Token string `json:"token"`
	// ExpiresAt is when the session becomes invalid
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountService provides identity and session operations.
//
// When the client manages its own tokens (no custom TokenSource configured),
// CreateSession stores the session token so later requests carry it
// automatically, and DeleteSession clears it.
//
// Example:
//
//	session, err := client.Account().CreateSession(ctx, "pilot@example.com", "hunter2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	me, err := client.Account().Get(ctx)
//	fmt.Println(me.Email)
type AccountService struct {
	client *client
}

func newAccountService(c *client) *AccountService {
	return &AccountService{client: c}
}

// Create registers a new account.
//
// Example:
//
//	user, err := client.Account().Create(ctx, "pilot@example.com", "hunter2", "Alice")
func (s *AccountService) Create(ctx context.Context, email, password, name string) (*User, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if email == "" {
		return nil, fmt.Errorf("email cannot be empty")
	}
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}

	body := map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	}

	var user User
	if err := s.client.transport.post(ctx, "/v1/account", body, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// CreateSession signs in with email and password. On success the session
// token is stored in the client's session store, unless a custom TokenSource
// was configured.
func (s *AccountService) CreateSession(ctx context.Context, email, password string) (*Session, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if email == "" {
		return nil, fmt.Errorf("email cannot be empty")
	}
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}

	body := map[string]string{
		"email":    email,
		"password": password,
	}

	var session Session
	if err := s.client.transport.post(ctx, "/v1/account/sessions", body, &session); err != nil {
		return nil, err
	}

	if s.client.sessions != nil {
		s.client.sessions.setToken(session.Token)
	}

	return &session, nil
}

// Get returns the account for the current session.
func (s *AccountService) Get(ctx context.Context) (*User, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	var user User
	if err := s.client.transport.get(ctx, "/v1/account", &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// DeleteSession signs out the current session. The locally stored token is
// cleared even when the server call fails.
func (s *AccountService) DeleteSession(ctx context.Context) error {
	if err := s.client.checkClosed(); err != nil {
		return err
	}

	err := s.client.transport.delete(ctx, "/v1/account/sessions/current")

	if s.client.sessions != nil {
		s.client.sessions.clear()
	}

	return err
}
