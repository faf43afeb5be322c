package spaceport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// WebhookExecution represents a single invocation of a webhook.
type WebhookExecution struct {
	// ID is the unique execution identifier
	ID string `json:"id"`
	// WebhookID is the webhook that was invoked
	WebhookID string `json:"webhook_id"`
	// Status is the execution status ("pending", "completed" or "failed")
	Status string `json:"status"`
	// StatusCode is the HTTP status returned by the webhook target
	StatusCode int `json:"status_code"`
	// Response is the raw response body from the webhook target
	Response json.RawMessage `json:"response,omitempty"`
	// CreatedAt is when the invocation started
	CreatedAt time.Time `json:"created_at"`
}

// WebhooksService provides webhook invocation operations.
//
// Example:
//
//	exec, err := client.Webhooks().Invoke(ctx, "deploy-hook", map[string]string{
//	    "ref": "main",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(exec.Status)
type WebhooksService struct {
	client *client
}

func newWebhooksService(c *client) *WebhooksService {
	return &WebhooksService{client: c}
}

// Invoke triggers a webhook with the given payload. Every call carries a
// generated X-Idempotency-Key header; the server deduplicates replays of
// the same key.
func (s *WebhooksService) Invoke(ctx context.Context, webhookID string, payload interface{}) (*WebhookExecution, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if webhookID == "" {
		return nil, fmt.Errorf("webhook id cannot be empty")
	}

	body, err := serialize(payload)
	if err != nil {
		return nil, err
	}

	path := buildPath("/v1/webhooks/{0}/invocations", webhookID)
	headers := map[string]string{"X-Idempotency-Key": UniqueID()}

	var exec WebhookExecution
	if err := s.client.transport.doWithHeaders(ctx, http.MethodPost, path, body, &exec, headers); err != nil {
		return nil, err
	}

	return &exec, nil
}

// GetExecution retrieves the state of a past invocation.
func (s *WebhooksService) GetExecution(ctx context.Context, webhookID, executionID string) (*WebhookExecution, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if webhookID == "" {
		return nil, fmt.Errorf("webhook id cannot be empty")
	}
	if executionID == "" {
		return nil, fmt.Errorf("execution id cannot be empty")
	}

	path := buildPath("/v1/webhooks/{0}/invocations/{1}", webhookID, executionID)

	var exec WebhookExecution
	if err := s.client.transport.get(ctx, path, &exec); err != nil {
		return nil, err
	}

	return &exec, nil
}
