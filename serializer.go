package spaceport

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// HealthResponse represents the health check response from the Spaceport API.
// It provides information about the service status and various health checks.
//
// This is used by the Health() method to verify connectivity and service health.
//
// Example response:
//
//	{
//	    "status": "healthy",
//	    "service": "spaceport",
//	    "version": "1.0.0",
//	    "uptime": "72h15m30s",
//	    "checks": {
//	        "database": "healthy",
//	        "storage": "healthy",
//	        "realtime": "healthy"
//	    }
//	}
type HealthResponse struct {
	// Status is the overall health status ("healthy" or "unhealthy")
	Status string `json:"status"`
	// Service is the service name
	Service string `json:"service"`
	// Version is the service version
	Version string `json:"version"`
	// Uptime is the service uptime as a string
	Uptime string `json:"uptime"`
	// Checks contains individual component health statuses
	Checks map[string]string `json:"checks"`
}

// serialize converts any Go value to json.RawMessage for transmission.
// This function handles various input types and ensures they can be
// properly sent to the API.
//
// Special handling:
//   - json.RawMessage: Passed through as-is
//   - strings: If valid JSON, sent as JSON; otherwise as a string value
//   - All other types: Marshaled to JSON
//
// The function validates that values are serializable before attempting
// to marshal them, providing better error messages.
//
// Example:
//
//	doc := Article{Title: "Hello", Views: 30}
//	raw, err := serialize(doc)
//	// raw contains: {"title":"Hello","views":30}
//
//	jsonStr := `{"key": "value"}`
//	raw, err = serialize(jsonStr)
//	// raw contains: {"key": "value"} (sent as JSON, not string)
func serialize(value interface{}) (json.RawMessage, error) {
	// If it's already json.RawMessage, return as is
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}

	// If it's a string that parses as JSON, pass it through untouched
	if str, ok := value.(string); ok {
		if gjson.Valid(str) {
			return json.RawMessage(str), nil
		}
		// Not valid JSON, treat as string value
		value = str
	}

	// Validate that the value is serializable
	if err := validateSerializable(value); err != nil {
		return nil, fmt.Errorf("value is not serializable: %w", err)
	}

	// Marshal the value
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize value: %w", err)
	}

	return json.RawMessage(data), nil
}

// validateSerializable checks if a value can be serialized to JSON.
// This pre-validation helps provide better error messages than waiting
// for json.Marshal to fail.
//
// The following types are always considered serializable:
//   - Basic types: bool, string, numeric types
//   - time.Time (serializes to RFC3339 format)
//   - []byte (serializes to base64)
//   - json.RawMessage
//   - nil
//
// For other types (structs, slices, maps), it attempts a test marshal
// to verify serializability.
func validateSerializable(value interface{}) error {
	if value == nil {
		return nil
	}

	// Common types that are always serializable
	switch value.(type) {
	case bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time,
		[]byte, json.RawMessage:
		return nil
	}

	// For other types, try to marshal to check
	_, err := json.Marshal(value)
	return err
}

// deserialize converts json.RawMessage to the target type.
// The target must be a pointer to the desired type.
//
// Special handling:
//   - *json.RawMessage: Direct assignment
//   - All other types: JSON unmarshal
//
// This function is used internally to convert API payloads back into
// Go types.
//
// Example:
//
//	var doc Article
//	raw := json.RawMessage(`{"title":"Hello","views":30}`)
//	err := deserialize(raw, &doc)
//	// doc now contains: Article{Title: "Hello", Views: 30}
func deserialize(data json.RawMessage, target interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("empty data")
	}

	// If target is *json.RawMessage, just assign
	if raw, ok := target.(*json.RawMessage); ok {
		*raw = data
		return nil
	}

	// Otherwise unmarshal
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to deserialize value: %w", err)
	}

	return nil
}

// parseAPIError parses an API error response into an APIError.
// This function attempts to parse the error body as JSON, but falls
// back to using the raw body as the error message if parsing fails.
//
// The function ensures that APIError always has a StatusCode set,
// even if the response body is empty or malformed.
//
// Example responses it handles:
//
//	// Well-formed API error
//	{"message": "document not found", "code": "NOT_FOUND"}
//
//	// Plain text error
//	"Internal server error"
//
//	// Empty response
//	(empty body results in "HTTP 500 error")
func parseAPIError(statusCode int, body []byte) error {
	if len(body) == 0 {
		return &APIError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("HTTP %d error", statusCode),
		}
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		// If we can't parse the error, return a generic one
		return &APIError{
			StatusCode: statusCode,
			Message:    string(body),
		}
	}

	apiErr.StatusCode = statusCode
	return &apiErr
}
