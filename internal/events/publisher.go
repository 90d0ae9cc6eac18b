// Package events appends tasks and domain events to the redis stream read
// by the worker.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"kapacity/api/internal/models"
)

const (
	TypeAccountCreated = "account_created"
	TypeOTPSweep       = "otp_sweep"
)

// Task is the flat shape of a stream entry. Redis stores every field as a
// string.
type Task struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	AccountID  string `json:"accountId,omitempty"`
	Kind       string `json:"kind,omitempty"`
	OccurredAt string `json:"occurredAt"`
}

type Publisher struct {
	client redis.Cmdable
	stream string
	now    func() time.Time
}

func NewPublisher(client redis.Cmdable, stream string) *Publisher {
	return &Publisher{client: client, stream: stream, now: time.Now}
}

func (p *Publisher) Publish(ctx context.Context, task Task) (string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.OccurredAt == "" {
		task.OccurredAt = p.now().UTC().Format(time.RFC3339Nano)
	}

	values := map[string]any{
		"id":         task.ID,
		"type":       task.Type,
		"occurredAt": task.OccurredAt,
	}
	if task.AccountID != "" {
		values["accountId"] = task.AccountID
	}
	if task.Kind != "" {
		values["kind"] = task.Kind
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", task.Type, err)
	}
	return id, nil
}

func (p *Publisher) AccountCreated(ctx context.Context, account models.Account) error {
	_, err := p.Publish(ctx, Task{
		Type:      TypeAccountCreated,
		AccountID: account.AccountID(),
		Kind:      string(account.Kind()),
	})
	return err
}

func (p *Publisher) OTPSweep(ctx context.Context) error {
	_, err := p.Publish(ctx, Task{Type: TypeOTPSweep})
	return err
}
