package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"classroom-quiz-service/internal/domain"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicTasksetComplete carries the final results of rooms that finished their plan.
const TopicTasksetComplete = "taskset.complete"

// completion is the wire form of a finished room. TeacherEmail is carried beside
// the results because FinalResults never serializes it to clients.
type completion struct {
	Results      domain.FinalResults `json:"results"`
	TeacherEmail string              `json:"teacherEmail,omitempty"`
}

// Bus is an in-process publish/subscribe boundary between the live engine
// and background consumers such as the report worker.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewSlogLogger(logger),
	)
	return &Bus{pubsub: pubsub, logger: logger}
}

// PublishCompletion implements app.CompletionPublisher.
func (b *Bus) PublishCompletion(ctx context.Context, results domain.FinalResults) error {
	payload, err := json.Marshal(completion{Results: results, TeacherEmail: results.TeacherMail})
	if err != nil {
		return fmt.Errorf("marshal completion: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("roomCode", results.RoomCode)
	msg.SetContext(ctx)
	if err := b.pubsub.Publish(TopicTasksetComplete, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TopicTasksetComplete, err)
	}
	return nil
}

// ConsumeCompletions subscribes to finished rooms and calls handle for each one
// until ctx is cancelled. Messages are acked even when handle fails; the handler
// owns its own error reporting.
func (b *Bus) ConsumeCompletions(ctx context.Context, handle func(context.Context, domain.FinalResults) error) error {
	messages, err := b.pubsub.Subscribe(ctx, TopicTasksetComplete)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicTasksetComplete, err)
	}
	go func() {
		for msg := range messages {
			var c completion
			if err := json.Unmarshal(msg.Payload, &c); err != nil {
				b.logger.ErrorContext(ctx, "dropping malformed completion",
					slog.String("message_id", msg.UUID),
					slog.Any("error", err),
				)
				msg.Ack()
				continue
			}
			c.Results.TeacherMail = c.TeacherEmail
			if err := handle(ctx, c.Results); err != nil {
				b.logger.WarnContext(ctx, "completion handler failed",
					slog.String("room", c.Results.RoomCode),
					slog.Any("error", err),
				)
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}
