package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockMessageTTL is how long a mock message stays readable.
const MockMessageTTL = 5 * time.Minute

// MockMessageKey is the Redis key holding the last mock message for phone.
func MockMessageKey(phone string) string {
	return "mockmessage:" + phone
}

// MockMessage is the record RedisSender stores.
type MockMessage struct {
	Phone  string `json:"phone"`
	Text   string `json:"text"`
	SentAt string `json:"sent_at"`
}

// RedisSender stores messages in Redis so tests can read them back through
// the service API.
type RedisSender struct {
	client *redis.Client
}

func NewRedisSender(client *redis.Client) *RedisSender {
	return &RedisSender{client: client}
}

func (s *RedisSender) Send(ctx context.Context, phone, text string) error {
	data, err := json.Marshal(MockMessage{
		Phone:  phone,
		Text:   text,
		SentAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal mock message: %w", err)
	}
	key := MockMessageKey(phone)
	if err := s.client.Set(ctx, key, data, MockMessageTTL).Err(); err != nil {
		return fmt.Errorf("failed to store mock message in '%s': %w", key, err)
	}
	return nil
}
