package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-delivery/internal/api"
	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Resolve(ctx context.Context, recipient push.Recipient) (push.TokenSet, error) {
	args := m.Called(ctx, recipient)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(push.TokenSet), args.Error(1)
}
func (m *MockTokenStore) Register(ctx context.Context, recipient push.Recipient, token push.DeviceToken) error {
	return m.Called(ctx, recipient, token).Error(0)
}
func (m *MockTokenStore) Remove(ctx context.Context, recipient push.Recipient, tokens []string) error {
	return m.Called(ctx, recipient, tokens).Error(0)
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestRegister(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockStore := new(MockTokenStore)
		tokenAPI := api.NewTokenAPI(mockStore, newTestLogger())

		mockStore.On("Register", mock.Anything, push.Recipient("u1"), mock.MatchedBy(func(tok push.DeviceToken) bool {
			return tok.Value == "fcm-token-abc" && tok.Platform == "android" && !tok.RegisteredAt.IsZero()
		})).Return(nil)

		w := postJSON(t, tokenAPI.Register, "/api/v1/register", map[string]string{
			"userId":   "u1",
			"token":    "fcm-token-abc",
			"platform": "android",
		})

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("Rejects empty token", func(t *testing.T) {
		mockStore := new(MockTokenStore)
		tokenAPI := api.NewTokenAPI(mockStore, newTestLogger())

		w := postJSON(t, tokenAPI.Register, "/api/v1/register", map[string]string{
			"userId": "u1", "token": "",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Rejects missing userId", func(t *testing.T) {
		mockStore := new(MockTokenStore)
		tokenAPI := api.NewTokenAPI(mockStore, newTestLogger())

		w := postJSON(t, tokenAPI.Register, "/api/v1/register", map[string]string{
			"token": "fcm-token-abc",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUnregister(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockStore := new(MockTokenStore)
		tokenAPI := api.NewTokenAPI(mockStore, newTestLogger())

		mockStore.On("Remove", mock.Anything, push.Recipient("u1"), []string{"fcm-token-abc"}).Return(nil)

		w := postJSON(t, tokenAPI.Unregister, "/api/v1/unregister", map[string]string{
			"userId": "u1",
			"token":  "fcm-token-abc",
		})

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("Storage failure answers 500", func(t *testing.T) {
		mockStore := new(MockTokenStore)
		tokenAPI := api.NewTokenAPI(mockStore, newTestLogger())

		mockStore.On("Remove", mock.Anything, push.Recipient("u1"), []string{"tok"}).
			Return(push.ErrStoreUnavailable)

		w := postJSON(t, tokenAPI.Unregister, "/api/v1/unregister", map[string]string{
			"userId": "u1", "token": "tok",
		})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
