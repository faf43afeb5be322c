// Package spaceport provides the official Go client for the Spaceport
// platform. It covers account and session management, document databases
// with relation resolution, file storage, chat, webhooks and the realtime
// channel protocol, all through one typed, context-aware API.
//
// # Features
//
// The SDK provides:
//   - Typed services for account, databases, storage, chat and webhooks
//   - Generic collection bindings for compile-time document typing
//   - A realtime channel client with automatic reconnect and resubscribe
//   - Circuit breaker protection for REST calls
//   - Context support for cancellation and timeouts
//   - Structured logging and pluggable observability hooks
//   - Prometheus and OpenTelemetry instrumentation out of the box
//   - Comprehensive error handling with retryable error detection
//
// # Basic Usage
//
// Create a client, sign in and work with documents:
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//
//	    "github.com/spaceporthq/spaceport-go"
//	)
//
//	func main() {
//	    client, err := spaceport.NewClient(spaceport.DefaultConfig().
//	        WithEndpoint("https://api.spaceport.example").
//	        WithProject("my-project"))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer client.Close()
//
//	    ctx := context.Background()
//
//	    // Sign in; the session token is applied to subsequent requests
//	    _, err = client.Account().CreateSession(ctx, "alice@example.com", "hunter2")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // Create a document
//	    doc, err := client.Databases().CreateDocument(ctx, "main", "posts", "",
//	        map[string]interface{}{"title": "Lift-off", "draft": true})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    log.Printf("created %s", doc.ID)
//	}
//
// # Configuration
//
// The SDK is configured through a fluent builder:
//
//	config := spaceport.DefaultConfig().
//	    WithEndpoint("https://api.spaceport.example").
//	    WithProject("my-project").
//	    WithTimeout(10 * time.Second).
//	    WithCircuitBreaker(spaceport.CircuitBreakerConfig{
//	        FailureThreshold: 5,
//	        Timeout:          30 * time.Second,
//	    })
//
//	client, err := spaceport.NewClient(config)
//
// The realtime endpoint is derived from the REST endpoint when not set
// explicitly. Realtime behavior has its own knobs:
//
//	config.Realtime.MaxReconnectAttempts = 10
//	config.Realtime.ReconnectDelay = 500 * time.Millisecond
//
// # Authentication
//
// By default the client manages its own session: CreateSession stores the
// returned token and DeleteSession clears it. To integrate with an external
// credential source instead, supply a TokenSource:
//
//	config := spaceport.DefaultConfig().
//	    WithEndpoint("https://api.spaceport.example").
//	    WithTokenSource(spaceport.StaticTokenSource(apiToken))
//
// # Relation Resolution
//
// Document reads can resolve relation fields server-side:
//
//	doc, err := client.Databases().GetDocument(ctx, "main", "posts", postID,
//	    &spaceport.DocumentOptions{
//	        Resolve:      []string{"author", "comments"},
//	        ResolveDepth: 2,
//	    })
//
// # Realtime
//
// The realtime client multiplexes channel subscriptions over a single
// WebSocket connection and survives connection loss:
//
//	rt := client.Realtime()
//
//	rt.OnMessageReceived(func(msg spaceport.Message) {
//	    fmt.Printf("[%s] %s\n", msg.ChannelID, msg.Content)
//	})
//	rt.OnConnectionStateChanged(func(state spaceport.ConnectionState) {
//	    log.Printf("realtime: %s", state)
//	})
//
//	if err := rt.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Disconnect()
//
//	if err := rt.SubscribeToChannel(ctx, "42"); err != nil {
//	    log.Fatal(err)
//	}
//
// Subscriptions registered before a connection drop are replayed
// automatically after reconnecting. Disconnect closes the connection
// cleanly and clears all registrations.
//
// # Error Handling
//
// The SDK provides rich error information and helper functions:
//
//	_, err := client.Databases().GetDocument(ctx, "main", "posts", id, nil)
//	if spaceport.IsNotFound(err) {
//	    // Handle missing document
//	    return nil
//	}
//
//	if spaceport.IsRetryable(err) {
//	    // Error is transient, can retry
//	}
//
//	// Access detailed error information
//	var spErr *spaceport.Error
//	if errors.As(err, &spErr) {
//	    log.Printf("type: %s, retryable: %v", spErr.Type, spErr.IsRetryable())
//	}
//
// # Circuit Breaker
//
// REST calls pass through a circuit breaker to prevent cascading failures:
//
//	config := spaceport.DefaultConfig().WithCircuitBreaker(spaceport.CircuitBreakerConfig{
//	    FailureThreshold: 5,       // Open after 5 failures
//	    SuccessThreshold: 2,       // Close after 2 successes in half-open
//	    Timeout: 30 * time.Second, // Try half-open after 30s
//	})
//
// Circuit states:
//   - Closed: Normal operation, requests pass through
//   - Open: Requests fail immediately without calling the server
//   - Half-Open: Limited requests allowed to test recovery
//
// # Observability
//
// Monitor SDK operations through the Observer interface. Built-in
// implementations cover in-memory counters (MetricsCollector), Prometheus
// (PrometheusObserver) and OpenTelemetry (OTelObserver):
//
//	collector := spaceport.NewMetricsCollector()
//	prom := spaceport.NewPrometheusObserver(nil)
//
//	config.WithObserver(spaceport.NewCompositeObserver(collector, prom))
//
// # Type-Safe Operations
//
// Generic collection bindings decode documents into your own types:
//
//	type Post struct {
//	    Title string `json:"title"`
//	    Draft bool   `json:"draft"`
//	}
//
//	posts := spaceport.NewCollection[Post](client, "main", "posts")
//
//	created, err := posts.Create(ctx, "", Post{Title: "Lift-off", Draft: true})
//	fmt.Printf("%s: %+v\n", created.ID, created.Value)
//
// # Thread Safety
//
// The client and all of its services are safe for concurrent use:
//
//	var wg sync.WaitGroup
//	for i := 0; i < 100; i++ {
//	    wg.Add(1)
//	    go func(n int) {
//	        defer wg.Done()
//	        client.Chat().SendMessage(ctx, "42", fmt.Sprintf("msg %d", n))
//	    }(i)
//	}
//	wg.Wait()
package spaceport
