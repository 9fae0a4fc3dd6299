package server

import (
	"errors"
	"net/http"
	"testing"

	"friendpush/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestUpdateDeviceTokenHandler(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		body           string
		actor          uint
		mockSetup      func(*MockUserRepository)
		expectedStatus int
	}{
		{
			name:  "Success",
			path:  "/api/users/bob/fcm-token",
			body:  `{"fcmToken":"tok-1"}`,
			actor: 2,
			mockSetup: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "bob").Return(&models.User{ID: 2, Username: "bob"}, nil)
				m.On("UpdateDeviceToken", mock.Anything, "bob", mock.MatchedBy(func(tok *string) bool {
					return tok != nil && *tok == "tok-1"
				})).Return(&models.User{ID: 2, Username: "bob"}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "Unknown user",
			path:  "/api/users/ghost/fcm-token",
			body:  `{"fcmToken":"tok-1"}`,
			actor: 2,
			mockSetup: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "ghost").Return(nil, nil)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:  "Someone else's account",
			path:  "/api/users/bob/fcm-token",
			body:  `{"fcmToken":"tok-1"}`,
			actor: 1,
			mockSetup: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "bob").Return(&models.User{ID: 2, Username: "bob"}, nil)
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Empty token",
			path:           "/api/users/bob/fcm-token",
			body:           `{"fcmToken":""}`,
			actor:          2,
			mockSetup:      func(*MockUserRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:  "Storage failure",
			path:  "/api/users/bob/fcm-token",
			body:  `{"fcmToken":"tok-1"}`,
			actor: 2,
			mockSetup: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "bob").Return(nil, models.NewInternalError(errors.New("timeout")))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserRepository)
			tt.mockSetup(users)
			_, app := newMockedServer(users, new(MockFriendRequestRepository), "")

			status, body := doRequest(t, app, http.MethodPut, tt.path, bearer(t, tt.actor), tt.body)
			assert.Equal(t, tt.expectedStatus, status, body)
			users.AssertExpectations(t)
		})
	}
}

func TestClearDeviceTokenHandler(t *testing.T) {
	users := new(MockUserRepository)
	users.On("FindByUsername", mock.Anything, "bob").Return(&models.User{ID: 2, Username: "bob"}, nil)
	users.On("UpdateDeviceToken", mock.Anything, "bob", (*string)(nil)).Return(&models.User{ID: 2}, nil)
	_, app := newMockedServer(users, new(MockFriendRequestRepository), "")

	status, _ := doRequest(t, app, http.MethodDelete, "/api/users/bob/fcm-token", bearer(t, 2), "")
	assert.Equal(t, http.StatusNoContent, status)
	users.AssertExpectations(t)
}

func TestGetFeatureFlags(t *testing.T) {
	_, app := newMockedServer(new(MockUserRepository), new(MockFriendRequestRepository), "dedupe_pending_requests=on")

	status, body := doRequest(t, app, http.MethodGet, "/api/feature-flags", bearer(t, 1), "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"dedupe_pending_requests":true`)
}
