package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-marketplace-auth/internal/domain"
)

type mockResolver struct{ mock.Mock }

func (m *mockResolver) GetSession(ctx context.Context, header http.Header) (*domain.AuthSession, error) {
	args := m.Called(header.Get("Authorization"))
	if s, _ := args.Get(0).(*domain.AuthSession); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func activeSession() *domain.AuthSession {
	u := &domain.User{UserID: "u1", Role: domain.RoleUser}
	return &domain.AuthSession{Token: "good", Session: &domain.Session{SessionID: "s1", UserID: "u1", Enable: true}, User: u}
}

func newResolver() *mockResolver {
	m := new(mockResolver)
	m.On("GetSession", "Bearer good").Return(activeSession(), nil)
	m.On("GetSession", mock.Anything).Return(nil, domain.ErrUnauthorized)
	return m
}

func TestAuth_NoSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	Auth(newResolver())(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"missing or invalid session"}`, rr.Body.String())
}

func TestAuth_ValidSession_InjectsIntoContext(t *testing.T) {
	var got *domain.AuthSession
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	Auth(newResolver())(capture).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.Session.SessionID)
}

func TestSessionFromContext_Empty(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)
}
