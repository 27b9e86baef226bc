package eventbus

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionRoundTripKeepsTeacherEmail(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan domain.FinalResults, 2)
	calls := 0
	err := bus.ConsumeCompletions(ctx, func(_ context.Context, final domain.FinalResults) error {
		calls++
		received <- final
		if calls == 1 {
			return errors.New("handler failure is logged, not redelivered")
		}
		return nil
	})
	require.NoError(t, err)

	first := domain.FinalResults{RoomCode: "ABC123", TeacherMail: "teacher@example.com"}
	require.NoError(t, bus.PublishCompletion(context.Background(), first))
	require.NoError(t, bus.PublishCompletion(context.Background(), domain.FinalResults{RoomCode: "XYZ789"}))

	got := map[string]string{}
	for len(got) < 2 {
		select {
		case final := <-received:
			got[final.RoomCode] = final.TeacherMail
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for completions, got %v", got)
		}
	}
	assert.Equal(t, map[string]string{"ABC123": "teacher@example.com", "XYZ789": ""}, got)

	select {
	case extra := <-received:
		t.Fatalf("unexpected redelivery of %s", extra.RoomCode)
	case <-time.After(50 * time.Millisecond):
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMalformedCompletionIsDropped(t *testing.T) {
	logs := &lockedBuffer{}
	bus := New(slog.New(slog.NewJSONHandler(logs, nil)))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 1)
	require.NoError(t, bus.ConsumeCompletions(ctx, func(_ context.Context, final domain.FinalResults) error {
		received <- final.RoomCode
		return nil
	}))

	require.NoError(t, bus.pubsub.Publish(TopicTasksetComplete, message.NewMessage(watermill.NewUUID(), []byte("{not json"))))
	require.NoError(t, bus.PublishCompletion(context.Background(), domain.FinalResults{RoomCode: "GOOD01"}))

	select {
	case code := <-received:
		assert.Equal(t, "GOOD01", code)
	case <-time.After(2 * time.Second):
		t.Fatalf("valid completion never arrived")
	}
	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), `"msg":"dropping malformed completion"`)
	}, 2*time.Second, 10*time.Millisecond)
}
