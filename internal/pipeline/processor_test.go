package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-delivery/internal/pipeline"
	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, recipientID, title, body, link, icon string) (push.DeliveryOutcome, error) {
	args := m.Called(ctx, recipientID, title, body, link, icon)
	return args.Get(0).(push.DeliveryOutcome), args.Error(1)
}

func TestProcessor(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	event := &pipeline.NotifyEvent{
		ReceiverID: "u1",
		Title:      "Hi",
		Body:       "There",
	}

	t.Run("Delivered event acks", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, "u1", "Hi", "There", "", "").
			Return(push.DeliveryOutcome{Sent: 1}, nil)

		processor := pipeline.NewProcessor(sender, logger)
		err := processor(ctx, messagepipeline.Message{}, event)

		require.NoError(t, err)
		sender.AssertExpectations(t)
	})

	t.Run("Undeliverable events ack instead of retrying forever", func(t *testing.T) {
		for name, sendErr := range map[string]error{
			"unknown recipient": push.ErrRecipientNotFound,
			"invalid payload":   push.ErrInvalidPayload,
		} {
			t.Run(name, func(t *testing.T) {
				sender := new(mockSender)
				sender.On("Send", mock.Anything, "u1", "Hi", "There", "", "").
					Return(push.DeliveryOutcome{}, sendErr)

				processor := pipeline.NewProcessor(sender, logger)
				err := processor(ctx, messagepipeline.Message{}, event)

				assert.NoError(t, err)
			})
		}
	})

	t.Run("Infrastructure failure nacks for retry", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything, "u1", "Hi", "There", "", "").
			Return(push.DeliveryOutcome{}, push.ErrDispatchUnavailable)

		processor := pipeline.NewProcessor(sender, logger)
		err := processor(ctx, messagepipeline.Message{}, event)

		assert.ErrorIs(t, err, push.ErrDispatchUnavailable)
	})
}
