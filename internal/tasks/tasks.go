package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"greendrake/negotiation/internal/messaging"
)

// TaskType defines the type of a background task.
const (
	TypeMessageDelivery = "message:deliver"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// MessageTaskPayload is the body of a message delivery task.
type MessageTaskPayload struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}

// NewMessageDeliveryTask builds a delivery task. Delivery is never retried.
func NewMessageDeliveryTask(phone, text string) (*asynq.Task, error) {
	payload, err := json.Marshal(MessageTaskPayload{Phone: phone, Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message task payload: %w", err)
	}
	return asynq.NewTask(TypeMessageDelivery, payload, asynq.MaxRetry(0)), nil
}

// Enqueuer is the part of asynq.Client used to queue tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSender hands messages to the background worker instead of sending
// them in-process.
type QueueSender struct {
	client Enqueuer
	logger zerolog.Logger
}

func NewQueueSender(client Enqueuer, logger zerolog.Logger) *QueueSender {
	return &QueueSender{client: client, logger: logger.With().Str("sender", "queue").Logger()}
}

func (s *QueueSender) Send(ctx context.Context, phone, text string) error {
	task, err := NewMessageDeliveryTask(phone, text)
	if err != nil {
		return err
	}
	info, err := s.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue message task: %w", err)
	}
	s.logger.Debug().Str("task_id", info.ID).Str("phone", phone).Msg("Message task enqueued")
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	sender messaging.Sender
	logger zerolog.Logger
}

func NewTaskProcessor(sender messaging.Sender, logger zerolog.Logger) *TaskProcessor {
	return &TaskProcessor{sender: sender, logger: logger}
}

// NewServer configures the asynq server and its handlers. The caller starts
// and shuts it down.
func NewServer(rdb *redis.Client, processor *TaskProcessor, logger zerolog.Logger) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error().Err(err).Str("task_type", task.Type()).Bytes("payload", task.Payload()).Msg("Task failed")
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeMessageDelivery, processor.HandleMessageDeliveryTask)
	return srv, mux
}

// --- Task Handlers ---

func (p *TaskProcessor) HandleMessageDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload MessageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal message task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Phone == "" {
		return fmt.Errorf("message task has no phone: %w", asynq.SkipRetry)
	}

	if err := p.sender.Send(ctx, payload.Phone, payload.Text); err != nil {
		p.logger.Error().Err(err).Str("phone", payload.Phone).Msg("Message delivery failed")
		return errors.Join(err, asynq.SkipRetry)
	}

	p.logger.Info().Str("phone", payload.Phone).Msg("Message task processed")
	return nil
}
