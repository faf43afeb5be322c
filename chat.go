package spaceport

import (
	"context"
	"fmt"
	"time"
)

// Message represents a chat message. The same shape arrives over REST and
// in realtime upsert_message and remove_message events.
type Message struct {
	// ID is the unique message identifier
	ID string `json:"id"`
	// ChannelID is the chat channel this message belongs to
	ChannelID string `json:"channel_id"`
	// AuthorID is the account that sent the message
	AuthorID string `json:"author_id"`
	// Content is the message body
	Content string `json:"content"`
	// CreatedAt is when the message was sent
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the message was last edited
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageList is a page of messages returned by ListMessages.
type MessageList struct {
	// Total is the number of messages in the channel, across all pages
	Total int `json:"total"`
	// Messages holds the messages in this page
	Messages []Message `json:"messages"`
}

// ChatService provides chat channel operations over REST.
// Pair it with the realtime client to receive live message events:
// subscribe to a channel with Realtime().SubscribeToChannel and handle
// upserts via OnMessageReceived.
//
// Example:
//
//	msg, err := client.Chat().SendMessage(ctx, "42", "lift-off in 10")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(msg.ID)
type ChatService struct {
	client *client
}

func newChatService(c *client) *ChatService {
	return &ChatService{client: c}
}

// SendMessage posts a message to a chat channel.
func (s *ChatService) SendMessage(ctx context.Context, channelID, content string) (*Message, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if channelID == "" {
		return nil, fmt.Errorf("channel id cannot be empty")
	}
	if content == "" {
		return nil, fmt.Errorf("content cannot be empty")
	}

	path := buildPath("/v1/chat/channels/{0}/messages", channelID)
	body := map[string]string{"content": content}

	var msg Message
	if err := s.client.transport.post(ctx, path, body, &msg); err != nil {
		return nil, err
	}

	return &msg, nil
}

// UpdateMessage edits the content of an existing message.
func (s *ChatService) UpdateMessage(ctx context.Context, channelID, messageID, content string) (*Message, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if err := validateMessageRef(channelID, messageID); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, fmt.Errorf("content cannot be empty")
	}

	path := buildPath("/v1/chat/channels/{0}/messages/{1}", channelID, messageID)
	body := map[string]string{"content": content}

	var msg Message
	if err := s.client.transport.patch(ctx, path, body, &msg); err != nil {
		return nil, err
	}

	return &msg, nil
}

// DeleteMessage removes a message from its channel.
func (s *ChatService) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := s.client.checkClosed(); err != nil {
		return err
	}

	if err := validateMessageRef(channelID, messageID); err != nil {
		return err
	}

	path := buildPath("/v1/chat/channels/{0}/messages/{1}", channelID, messageID)
	return s.client.transport.delete(ctx, path)
}

// ListMessages lists messages in a channel with optional pagination.
func (s *ChatService) ListMessages(ctx context.Context, channelID string, opts *ListOptions) (*MessageList, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if channelID == "" {
		return nil, fmt.Errorf("channel id cannot be empty")
	}

	path := buildPath("/v1/chat/channels/{0}/messages", channelID)
	if query := encodeListOptions(opts); query != "" {
		path += "?" + query
	}

	var list MessageList
	if err := s.client.transport.get(ctx, path, &list); err != nil {
		return nil, err
	}

	return &list, nil
}

func validateMessageRef(channelID, messageID string) error {
	if channelID == "" {
		return fmt.Errorf("channel id cannot be empty")
	}
	if messageID == "" {
		return fmt.Errorf("message id cannot be empty")
	}
	return nil
}
