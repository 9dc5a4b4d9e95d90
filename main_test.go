package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/jamestelfer/micropub-bridge/internal/config"
	"github.com/jamestelfer/micropub-bridge/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockServer struct {
	mock.Mock
}

func (m *MockServer) ListenAndServe() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockServer) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestServeHTTP_StartupError(t *testing.T) {
	// deregister signal handlers afterwards just in case they're left around
	defer signal.Reset()

	expectedErr := errors.New("startup error")

	mockServer := MockServer{}
	mockServer.On("ListenAndServe").Return(expectedErr)
	mockServer.On("Shutdown", mock.Anything).Return(nil)

	serverCfg := config.ServerConfig{Port: -1, ShutdownTimeoutSeconds: 25}
	err := serveHTTP(serverCfg, &mockServer)

	require.Error(t, err)
	assert.Equal(t, expectedErr, err)
	mockServer.AssertExpectations(t)
}

func TestServeHTTP_ShutdownSignal(t *testing.T) {
	// deregister signal handlers afterwards just in case they're left around
	defer signal.Reset()

	// set up the server to run for a period of time if an expected signal
	// interrupt isn't received
	expectedErr := errors.New("startup should be interrupted before this error is returned")
	mockServer := MockServer{}
	mockServer.On("ListenAndServe").Return(expectedErr).WaitUntil(time.After(5 * time.Second))
	mockServer.On("Shutdown", mock.Anything).Return(nil)

	// send termination signal after the mock server has had enough time to start
	startupTimer, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go func() {
		<-startupTimer.Done()
		syscall.Kill(syscall.Getpid(), syscall.SIGINT)
	}()

	serverCfg := config.ServerConfig{Port: -1, ShutdownTimeoutSeconds: 25}
	err := serveHTTP(serverCfg, &mockServer)

	require.NoError(t, err)

	mockServer.AssertExpectations(t)
}

func TestServeHTTP_GracefulShutdown(t *testing.T) {
	// deregister signal handlers afterwards just in case they're left around
	defer signal.Reset()

	var actualError error

	mockServer := MockServer{}
	mockServer.On("ListenAndServe").Return(nil)
	mockServer.On("Shutdown", mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		<-ctx.Done()
		actualError = ctx.Err()
	}).Return(errors.New("ignore this"))

	serverCfg := config.ServerConfig{Port: -1, ShutdownTimeoutSeconds: 1}
	_ = serveHTTP(serverCfg, &mockServer)

	require.Error(t, actualError)
	assert.ErrorContains(t, actualError, "context deadline exceeded")

	mockServer.AssertExpectations(t)
}

func TestConfigureServerRoutes(t *testing.T) {
	testhelpers.SetupLogger(t)

	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer valid-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"me":"https://kodfabrik.se/","scope":"create","client_id":"https://client.example/"}`))
	}))
	defer tokens.Close()

	publisher := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://kodfabrik.se/posts/1")
		w.WriteHeader(http.StatusCreated)
	}))
	defer publisher.Close()

	cfg := config.Config{
		Authorization: config.AuthorizationConfig{
			Me:            "https://kodfabrik.se",
			TokenEndpoint: tokens.URL,
		},
		Publish: config.PublishConfig{URL: publisher.URL},
		Server:  config.ServerConfig{RequestLimitBytes: 1024},
	}

	handler, err := configureServerRoutes(context.Background(), cfg)
	require.NoError(t, err)

	post := func(token string, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/micropub", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	t.Run("creates post", func(t *testing.T) {
		rr := post("valid-token", url.Values{"h": {"entry"}, "content": {"hello"}}.Encode())

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "https://kodfabrik.se/posts/1", rr.Header().Get("Location"))
	})

	t.Run("rejects token", func(t *testing.T) {
		rr := post("invalid-token", url.Values{"h": {"entry"}, "content": {"hello"}}.Encode())

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "Invalid token.", rr.Body.String())
	})

	t.Run("limits body", func(t *testing.T) {
		rr := post("valid-token", url.Values{"h": {"entry"}, "content": {strings.Repeat("x", 2048)}}.Encode())

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	t.Run("refuses other methods", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/micropub", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("healthcheck", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/healthcheck", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestConfigureServerRoutes_ReferenceFileFailure(t *testing.T) {
	cfg := config.Config{
		Authorization: config.AuthorizationConfig{
			TokenReferencesFile: t.TempDir() + "/missing.yaml",
		},
		Publish: config.PublishConfig{URL: "http://localhost"},
	}

	_, err := configureServerRoutes(context.Background(), cfg)

	assert.ErrorContains(t, err, "token reference configuration failed")
}
