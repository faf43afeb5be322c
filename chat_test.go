package spaceport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat_SendMessage(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/chat/channels/42/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Message{
			ID:        "m-1",
			ChannelID: "42",
			AuthorID:  "u-1",
			Content:   gotBody["content"],
			CreatedAt: time.Now(),
		})
	}))
	defer server.Close()

	client, err := NewClient(DefaultConfig().WithEndpoint(server.URL))
	require.NoError(t, err)
	defer client.Close()

	msg, err := client.Chat().SendMessage(context.Background(), "42", "lift-off in 10")
	require.NoError(t, err, "SendMessage should succeed")

	assert.Equal(t, "m-1", msg.ID)
	assert.Equal(t, "42", msg.ChannelID)
	assert.Equal(t, "lift-off in 10", msg.Content)
	assert.Equal(t, "lift-off in 10", gotBody["content"])
}

func TestChat_UpdateMessage(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/v1/chat/channels/42/messages/m-1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(Message{ID: "m-1", ChannelID: "42", Content: gotBody["content"]})
	}))
	defer server.Close()

	client, err := NewClient(DefaultConfig().WithEndpoint(server.URL))
	require.NoError(t, err)
	defer client.Close()

	msg, err := client.Chat().UpdateMessage(context.Background(), "42", "m-1", "lift-off in 5")
	require.NoError(t, err, "UpdateMessage should succeed")

	assert.Equal(t, "lift-off in 5", msg.Content)
	assert.Equal(t, "lift-off in 5", gotBody["content"])
}

func TestChat_ListMessages(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode(MessageList{
			Total: 2,
			Messages: []Message{
				{ID: "m-1", ChannelID: "42", Content: "first"},
				{ID: "m-2", ChannelID: "42", Content: "second"},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(DefaultConfig().WithEndpoint(server.URL))
	require.NoError(t, err)
	defer client.Close()

	list, err := client.Chat().ListMessages(context.Background(), "42", &ListOptions{Limit: 50, Cursor: "m-0"})
	require.NoError(t, err, "ListMessages should succeed")

	assert.Equal(t, "50", gotQuery.Get("limit"))
	assert.Equal(t, "m-0", gotQuery.Get("cursor"))

	assert.Equal(t, 2, list.Total)
	require.Len(t, list.Messages, 2)
	assert.Equal(t, "second", list.Messages[1].Content)
}

func TestChat_DeleteMessage(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, err := NewClient(DefaultConfig().WithEndpoint(server.URL))
	require.NoError(t, err)
	defer client.Close()

	err = client.Chat().DeleteMessage(context.Background(), "42", "m-1")
	require.NoError(t, err, "DeleteMessage should succeed")

	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/v1/chat/channels/42/messages/m-1", gotPath)
}

func TestChat_Validation(t *testing.T) {
	client, err := NewClient(DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	_, err = client.Chat().SendMessage(ctx, "", "hello")
	assert.ErrorContains(t, err, "channel id cannot be empty")

	_, err = client.Chat().SendMessage(ctx, "42", "")
	assert.ErrorContains(t, err, "content cannot be empty")

	_, err = client.Chat().UpdateMessage(ctx, "42", "", "hello")
	assert.ErrorContains(t, err, "message id cannot be empty")

	err = client.Chat().DeleteMessage(ctx, "", "m-1")
	assert.ErrorContains(t, err, "channel id cannot be empty")

	_, err = client.Chat().ListMessages(ctx, "", nil)
	assert.ErrorContains(t, err, "channel id cannot be empty")
}
