package apns

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

type MockAPNSClient struct {
	mock.Mock
}

func (m *MockAPNSClient) PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apns2.Response), args.Error(1)
}

func TestAPNSDispatch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	payload := push.Payload{Title: "Hello iOS", Body: "Body", Link: "https://app/chat/1"}

	t.Run("Happy Path - Success", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		engine := NewEngineWithClient(mockClient, "com.test.app", logger)

		mockResponse := &apns2.Response{StatusCode: http.StatusOK}
		mockClient.On("PushWithContext", mock.Anything, mock.MatchedBy(func(n *apns2.Notification) bool {
			return n.DeviceToken == "token-1" &&
				n.Topic == "com.test.app" &&
				n.Priority == apns2.PriorityHigh
		})).Return(mockResponse, nil)

		results, err := engine.Dispatch(ctx, payload, []string{"token-1"})

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, push.StatusSuccess, results[0].Status)
		mockClient.AssertExpectations(t)
	})

	t.Run("Dead Token - Permanent Failure", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		engine := NewEngineWithClient(mockClient, "com.test.app", logger)

		mockResponse := &apns2.Response{
			StatusCode: http.StatusBadRequest,
			Reason:     apns2.ReasonBadDeviceToken,
		}
		mockClient.On("PushWithContext", mock.Anything, mock.Anything).Return(mockResponse, nil)

		results, err := engine.Dispatch(ctx, payload, []string{"bad-token"})

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, push.StatusPermanentFailure, results[0].Status)
		assert.Equal(t, "bad-token", results[0].Token)
	})

	t.Run("Transport Failure - Transient, not batch-level", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		engine := NewEngineWithClient(mockClient, "com.test.app", logger)

		mockClient.On("PushWithContext", mock.Anything, mock.Anything).
			Return(nil, errors.New("connection refused"))

		results, err := engine.Dispatch(ctx, payload, []string{"token-1"})

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, push.StatusTransientFailure, results[0].Status)
	})

	t.Run("Configuration Rejection - not the token's fault", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		engine := NewEngineWithClient(mockClient, "com.test.app", logger)

		mockResponse := &apns2.Response{
			StatusCode: http.StatusBadRequest,
			Reason:     apns2.ReasonTopicDisallowed,
		}
		mockClient.On("PushWithContext", mock.Anything, mock.Anything).Return(mockResponse, nil)

		results, err := engine.Dispatch(ctx, payload, []string{"token-1"})

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, push.StatusTransientFailure, results[0].Status)
	})

	t.Run("Empty token set is a no-op", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		engine := NewEngineWithClient(mockClient, "com.test.app", logger)

		results, err := engine.Dispatch(ctx, payload, nil)

		require.NoError(t, err)
		assert.Empty(t, results)
		mockClient.AssertNotCalled(t, "PushWithContext", mock.Anything, mock.Anything)
	})
}

func TestNewEngine_BadKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := NewEngine(Config{P8KeyContent: "not a pem"}, logger)
	assert.Error(t, err)
}
