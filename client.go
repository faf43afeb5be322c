package spaceport

import (
	"context"
	"fmt"
	"sync"
)

// TokenSource supplies the access token attached to API requests and used
// to authenticate realtime channel subscriptions.
//
// Implementations must be safe for concurrent use. Token is called on every
// request, so rotated credentials take effect immediately.
//
// Use StaticTokenSource for a fixed API key, or leave Config.TokenSource nil
// to let the client manage tokens from account sessions automatically.
type TokenSource interface {
	// Token returns the current access token, or an empty string when no
	// credential is available. Returning an error fails the request.
	Token() (string, error)
}

// StaticTokenSource returns a TokenSource that always yields the given token.
//
// Example:
//
//	config := spaceport.DefaultConfig().
//	    WithTokenSource(spaceport.StaticTokenSource(os.Getenv("SPACEPORT_API_KEY")))
func StaticTokenSource(token string) TokenSource {
	return staticToken(token)
}

type staticToken string

// Token returns the fixed token
func (s staticToken) Token() (string, error) {
	return string(s), nil
}

// sessionStore is the client-managed token source. The account service
// writes the session token here after sign-in and clears it on sign-out.
type sessionStore struct {
	mu    sync.RWMutex
	token string
}

func newSessionStore() *sessionStore {
	return &sessionStore{}
}

// Token returns the stored session token, empty when signed out
func (s *sessionStore) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *sessionStore) setToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *sessionStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// Client represents a Spaceport API client that provides thread-safe access
// to the platform services: accounts, databases, file storage, chat and
// webhooks over REST, plus realtime channel messaging over WebSocket.
//
// All methods are safe for concurrent use.
//
// Example:
//
//	client, err := spaceport.NewClient(spaceport.DefaultConfig().
//	    WithEndpoint("https://api.example.com").
//	    WithProject("my-project"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	ctx := context.Background()
//
//	// Sign in
//	_, err = client.Account().CreateSession(ctx, "pilot@example.com", "hunter2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Fetch a document
//	doc, err := client.Databases().GetDocument(ctx, "main", "articles", "42", nil)
//	if err != nil {
//	    if spaceport.IsNotFound(err) {
//	        log.Println("Article not found")
//	    } else {
//	        log.Printf("Failed to get: %v", err)
//	    }
//	}
type Client interface {
	// Account returns the service for identity and session operations.
	Account() *AccountService

	// Databases returns the service for document database operations.
	Databases() *DatabasesService

	// Storage returns the service for file storage operations.
	Storage() *StorageService

	// Chat returns the service for chat channel operations.
	Chat() *ChatService

	// Webhooks returns the service for webhook operations.
	Webhooks() *WebhooksService

	// Realtime returns the realtime channel client. The client does not
	// connect until Connect is called on it.
	Realtime() *RealtimeClient

	// Health checks connectivity to the server and returns its health
	// report. Inspect the Status field to distinguish a degraded service
	// from a healthy one.
	//
	// Example:
	//
	//	health, err := client.Health(ctx)
	//	if err != nil {
	//	    log.Printf("Server is not reachable: %v", err)
	//	} else if health.Status != "healthy" {
	//	    log.Printf("Server is degraded: %+v", health.Checks)
	//	}
	Health(ctx context.Context) (*HealthResponse, error)

	// Close closes the client and releases all resources, including any
	// active realtime connection. After calling Close, the client should
	// not be used. Close is safe to call multiple times.
	//
	// Example:
	//
	//	client, _ := spaceport.NewClient(config)
	//	defer client.Close() // Always close when done
	Close() error
}

// client is the concrete implementation of the Client interface
type client struct {
	config    *Config
	transport *httpTransport

	// sessions is non-nil only when the client manages its own tokens
	sessions *sessionStore

	account   *AccountService
	databases *DatabasesService
	storage   *StorageService
	chat      *ChatService
	webhooks  *WebhooksService
	realtime  *RealtimeClient

	mu     sync.RWMutex
	closed bool
}

// NewClient creates a new Spaceport client with the provided configuration.
// If config is nil, default configuration values will be used.
//
// When no TokenSource is configured, the client manages tokens itself:
// Account().CreateSession stores the session token and subsequent requests
// carry it automatically.
//
// The client maintains a connection pool for efficient HTTP communication
// and is safe for concurrent use by multiple goroutines.
//
// Example:
//
//	// Create with default config
//	client, err := spaceport.NewClient(nil)
//
//	// Create with custom config
//	config := spaceport.DefaultConfig().
//	    WithEndpoint("https://api.example.com").
//	    WithProject("my-project").
//	    WithTimeout(10 * time.Second)
//	client, err := spaceport.NewClient(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
func NewClient(config *Config) (Client, error) {
	// Use default config if nil
	if config == nil {
		config = DefaultConfig()
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &client{config: config}

	// Manage session tokens ourselves unless the caller supplied a source
	if config.TokenSource == nil {
		c.sessions = newSessionStore()
		config.TokenSource = c.sessions
	}

	// Create transport
	transport, err := newHTTPTransport(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	c.transport = transport

	c.account = newAccountService(c)
	c.databases = newDatabasesService(c)
	c.storage = newStorageService(c)
	c.chat = newChatService(c)
	c.webhooks = newWebhooksService(c)
	c.realtime = newRealtimeClient(config)

	return c, nil
}

// Account returns the account service
func (c *client) Account() *AccountService {
	return c.account
}

// Databases returns the databases service
func (c *client) Databases() *DatabasesService {
	return c.databases
}

// Storage returns the storage service
func (c *client) Storage() *StorageService {
	return c.storage
}

// Chat returns the chat service
func (c *client) Chat() *ChatService {
	return c.chat
}

// Webhooks returns the webhooks service
func (c *client) Webhooks() *WebhooksService {
	return c.webhooks
}

// Realtime returns the realtime channel client
func (c *client) Realtime() *RealtimeClient {
	return c.realtime
}

// Health checks connectivity to the server
func (c *client) Health(ctx context.Context) (*HealthResponse, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := c.transport.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Close closes the client and releases resources
func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	// Tear down the realtime connection before the HTTP pool
	if c.realtime != nil {
		c.realtime.Disconnect()
	}

	return c.transport.close()
}

// checkClosed checks if the client is closed
func (c *client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}
	return nil
}
