package spaceport

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the configuration for the Spaceport client.
// All fields except Endpoint are optional and have sensible defaults.
//
// Configuration can be built using the fluent builder pattern:
//
//	config := spaceport.DefaultConfig().
//	    WithEndpoint("https://api.spaceport.example").
//	    WithProject("my-project").
//	    WithTimeout(10 * time.Second).
//	    WithAutoReconnect(true)
//
//	client, err := spaceport.NewClient(config)
type Config struct {
	// Endpoint is the base URL of the Spaceport REST API.
	// Default: "http://localhost:8080"
	Endpoint string

	// RealtimeEndpoint is the base URL of the realtime WebSocket service.
	// If empty, it is derived from Endpoint by swapping the scheme to
	// ws/wss. The realtime client dials <RealtimeEndpoint>/app/<Project>.
	RealtimeEndpoint string

	// Project is the project (application) identifier. It is sent with
	// every REST request and forms part of the realtime connection URL.
	Project string

	// Timeout is the HTTP request timeout.
	// This includes connection time, any redirects, and reading the response body.
	// Default: 30s
	Timeout time.Duration

	// TransportConfig holds HTTP transport settings.
	// Configures connection pooling and keep-alive behavior.
	TransportConfig TransportConfig

	// Headers are custom headers to include in all requests.
	// Useful for correlation IDs or custom metadata.
	// Example: {"X-Correlation-ID": "12345"}
	Headers map[string]string

	// CircuitBreakerConfig holds circuit breaker settings for REST calls.
	// If nil, circuit breaking is disabled and every call is a single
	// attempt against the API.
	CircuitBreakerConfig *CircuitBreakerConfig

	// Observer for monitoring operations.
	// Allows tracking of requests, realtime frames, and connection state.
	// If nil, NoopObserver is used.
	Observer Observer

	// Logger receives structured SDK logs (reconnect scheduling, replay
	// failures, keepalive lifecycle). If nil, a logger at WarnLevel is
	// created so the SDK stays quiet by default.
	Logger *logrus.Logger

	// TokenSource supplies the session credential attached to requests and
	// used to sign channel subscriptions. If nil, the client's in-memory
	// session store is used (populated by Account().CreateSession).
	TokenSource TokenSource

	// Realtime holds the realtime channel client settings.
	Realtime RealtimeConfig
}

// RealtimeConfig holds configuration for the realtime channel client.
//
// Example:
//
//	config.Realtime = spaceport.RealtimeConfig{
//	    AutoReconnect:        true,
//	    MaxReconnectAttempts: 10,
//	    ReconnectDelay:       500 * time.Millisecond,
//	    MaxReconnectDelay:    10 * time.Second,
//	}
type RealtimeConfig struct {
	// AutoReconnect controls whether the client reconnects after an
	// abnormal transport close. A normal closure never triggers
	// reconnection.
	// Default: true
	AutoReconnect bool

	// MaxReconnectAttempts caps consecutive reconnect attempts.
	// -1 means unbounded. The counter resets to zero every time a
	// connection is successfully established.
	// Default: -1
	MaxReconnectAttempts int

	// ReconnectDelay is the base delay of the exponential reconnect
	// backoff: delay = min(ReconnectDelay * 2^attempts, MaxReconnectDelay).
	// Default: 1s
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the reconnect backoff delay.
	// Default: 30s
	MaxReconnectDelay time.Duration

	// PingInterval is the keepalive ping period while connected.
	// The server's pong is accepted but not used for liveness; only
	// transport-level closes drive reconnection.
	// Default: 30s
	PingInterval time.Duration

	// SubscribeTimeout is how long a channel subscription waits for the
	// server's acknowledgement before failing with ErrSubscriptionTimeout.
	// Default: 10s
	SubscribeTimeout time.Duration
}

// TransportConfig holds HTTP transport configuration for connection pooling.
// These settings control how the SDK manages HTTP connections.
//
// Example:
//
//	config.TransportConfig = spaceport.TransportConfig{
//	    MaxIdleConns:    200,
//	    MaxConnsPerHost: 50,
//	    IdleConnTimeout: 120 * time.Second,
//	}
type TransportConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	// across all hosts. Zero means no limit.
	// Default: 100
	MaxIdleConns int

	// MaxConnsPerHost controls the maximum connections per host.
	// This includes connections in the dialing, active, and idle states.
	// Default: 10
	MaxConnsPerHost int

	// IdleConnTimeout is the maximum time an idle connection will remain idle
	// before closing itself. Zero means no limit.
	// Default: 90s
	IdleConnTimeout time.Duration
}

// DefaultRealtimeConfig returns the realtime settings the platform documents
// as defaults: auto-reconnect with unbounded attempts, 1s base backoff capped
// at 30s, 30s keepalive pings and a 10s subscription acknowledgement window.
func DefaultRealtimeConfig() RealtimeConfig {
	return RealtimeConfig{
		AutoReconnect:        true,
		MaxReconnectAttempts: -1,
		ReconnectDelay:       time.Second,
		MaxReconnectDelay:    30 * time.Second,
		PingInterval:         30 * time.Second,
		SubscribeTimeout:     10 * time.Second,
	}
}

// DefaultConfig returns a Config with sensible defaults suitable for most use cases.
// The default configuration includes:
//   - Endpoint: http://localhost:8080
//   - Timeout: 30 seconds
//   - Connection pooling: 100 idle connections, 10 per host
//   - Realtime: auto-reconnect, unbounded attempts, 1s..30s backoff
//
// Example:
//
//	config := spaceport.DefaultConfig().WithProject("my-project")
//	client, err := spaceport.NewClient(config)
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "http://localhost:8080",
		Timeout:  30 * time.Second,
		TransportConfig: TransportConfig{
			MaxIdleConns:    100,
			MaxConnsPerHost: 10,
			IdleConnTimeout: 90 * time.Second,
		},
		Headers:  make(map[string]string),
		Observer: &NoopObserver{},
		Realtime: DefaultRealtimeConfig(),
	}
}

// WithEndpoint sets the base URL for the Spaceport REST API.
// The URL should include the protocol (http/https) but no trailing slash.
//
// Example:
//
//	config := spaceport.DefaultConfig().
//	    WithEndpoint("https://api.spaceport.example")
func (c *Config) WithEndpoint(url string) *Config {
	c.Endpoint = url
	return c
}

// WithRealtimeEndpoint sets the base URL of the realtime WebSocket service.
// Without it, the realtime endpoint is derived from Endpoint by swapping the
// scheme (http -> ws, https -> wss).
//
// Example:
//
//	config := spaceport.DefaultConfig().
//	    WithRealtimeEndpoint("wss://realtime.spaceport.example")
func (c *Config) WithRealtimeEndpoint(url string) *Config {
	c.RealtimeEndpoint = url
	return c
}

// WithProject sets the project identifier sent with every request and used
// to form the realtime connection URL <RealtimeEndpoint>/app/<Project>.
func (c *Config) WithProject(project string) *Config {
	c.Project = project
	return c
}

// WithTimeout sets the request timeout for all REST operations.
// This includes connection time, redirects, and reading the response.
//
// Example:
//
//	config := spaceport.DefaultConfig().
//	    WithTimeout(10 * time.Second)
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithHeader adds a custom header to be sent with all requests.
//
// Example:
//
//	config := spaceport.DefaultConfig().
//	    WithHeader("X-Correlation-ID", "abc-123")
func (c *Config) WithHeader(key, value string) *Config {
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	c.Headers[key] = value
	return c
}

// WithCircuitBreaker enables and configures circuit breaker protection for
// REST calls. The breaker fails fast while the service is unhealthy; it never
// retries on the caller's behalf.
//
// Example:
//
//	config := spaceport.DefaultConfig().
//	    WithCircuitBreaker(spaceport.CircuitBreakerConfig{
//	        FailureThreshold: 5,
//	        SuccessThreshold: 2,
//	        Timeout: 30 * time.Second,
//	    })
func (c *Config) WithCircuitBreaker(config CircuitBreakerConfig) *Config {
	c.CircuitBreakerConfig = &config
	return c
}

// WithObserver sets a custom observer for monitoring SDK operations.
// Observers can track REST requests, realtime frames, reconnect attempts and
// connection state transitions.
//
// Example:
//
//	collector := spaceport.NewMetricsCollector()
//	config := spaceport.DefaultConfig().
//	    WithObserver(collector)
func (c *Config) WithObserver(observer Observer) *Config {
	c.Observer = observer
	return c
}

// WithLogger sets the logger used for SDK diagnostics.
//
// Example:
//
//	logger := logrus.New()
//	logger.SetLevel(logrus.DebugLevel)
//	config := spaceport.DefaultConfig().WithLogger(logger)
func (c *Config) WithLogger(logger *logrus.Logger) *Config {
	c.Logger = logger
	return c
}

// WithTokenSource sets a custom session credential source. This replaces the
// client's in-memory session store, which is otherwise populated by
// Account().CreateSession.
func (c *Config) WithTokenSource(source TokenSource) *Config {
	c.TokenSource = source
	return c
}

// WithRealtime replaces the realtime channel client settings wholesale.
func (c *Config) WithRealtime(config RealtimeConfig) *Config {
	c.Realtime = config
	return c
}

// WithAutoReconnect controls reconnection after abnormal transport closes.
func (c *Config) WithAutoReconnect(enabled bool) *Config {
	c.Realtime.AutoReconnect = enabled
	return c
}

// WithMaxReconnectAttempts caps consecutive reconnect attempts.
// Pass -1 for unbounded retries.
func (c *Config) WithMaxReconnectAttempts(attempts int) *Config {
	c.Realtime.MaxReconnectAttempts = attempts
	return c
}

// WithReconnectDelay sets the base and maximum delays of the exponential
// reconnect backoff.
//
// Example:
//
//	config := spaceport.DefaultConfig().
//	    WithReconnectDelay(500*time.Millisecond, 10*time.Second)
func (c *Config) WithReconnectDelay(base, max time.Duration) *Config {
	c.Realtime.ReconnectDelay = base
	c.Realtime.MaxReconnectDelay = max
	return c
}

// WithPingInterval sets the keepalive ping period for the realtime client.
func (c *Config) WithPingInterval(interval time.Duration) *Config {
	c.Realtime.PingInterval = interval
	return c
}

// WithSubscribeTimeout sets how long channel subscriptions wait for the
// server's acknowledgement.
func (c *Config) WithSubscribeTimeout(timeout time.Duration) *Config {
	c.Realtime.SubscribeTimeout = timeout
	return c
}

// Validate validates the configuration and sets defaults for missing values.
// This is called automatically by NewClient.
//
// Returns an error if the configuration is invalid (e.g., missing endpoint).
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrInvalidConfig
	}
	if c.RealtimeEndpoint == "" {
		c.RealtimeEndpoint = deriveRealtimeEndpoint(c.Endpoint)
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	if c.Observer == nil {
		c.Observer = &NoopObserver{}
	}
	if c.Logger == nil {
		c.Logger = newDefaultLogger()
	}
	if c.Realtime.MaxReconnectAttempts == 0 {
		c.Realtime.MaxReconnectAttempts = -1
	}
	if c.Realtime.ReconnectDelay <= 0 {
		c.Realtime.ReconnectDelay = time.Second
	}
	if c.Realtime.MaxReconnectDelay <= 0 {
		c.Realtime.MaxReconnectDelay = 30 * time.Second
	}
	if c.Realtime.PingInterval <= 0 {
		c.Realtime.PingInterval = 30 * time.Second
	}
	if c.Realtime.SubscribeTimeout <= 0 {
		c.Realtime.SubscribeTimeout = 10 * time.Second
	}
	// Validate circuit breaker config if present
	if c.CircuitBreakerConfig != nil {
		if c.CircuitBreakerConfig.FailureThreshold <= 0 {
			c.CircuitBreakerConfig.FailureThreshold = 5
		}
		if c.CircuitBreakerConfig.SuccessThreshold <= 0 {
			c.CircuitBreakerConfig.SuccessThreshold = 2
		}
		if c.CircuitBreakerConfig.Timeout <= 0 {
			c.CircuitBreakerConfig.Timeout = 30 * time.Second
		}
		if c.CircuitBreakerConfig.HalfOpenRequests <= 0 {
			c.CircuitBreakerConfig.HalfOpenRequests = 3
		}
	}
	return nil
}

// deriveRealtimeEndpoint swaps the REST endpoint scheme for the matching
// WebSocket scheme. Hosted deployments that serve realtime from a separate
// host should set RealtimeEndpoint explicitly.
func deriveRealtimeEndpoint(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

func newDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}
