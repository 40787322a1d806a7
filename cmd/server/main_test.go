package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
	"finance-tracker/internal/handlers"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/middleware"
	"finance-tracker/internal/notify"
	"finance-tracker/internal/session"
	"finance-tracker/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSetupRouter(t *testing.T) {
	// Setup dependencies
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err, "failed to create database")
	defer db.Close()

	if _, err := os.Stat("../../web/templates"); os.IsNotExist(err) {
		t.Skip("Template directory not found, skipping router test")
	}

	// Use relative paths for tests running in cmd/server
	h := handlers.NewHandlers(handlers.App{
		Credentials: auth.NewCredentials(db),
		Sessions:    session.NewManager(session.NewMemoryStore(), 0, nil),
		Ledger:      ledger.NewService(db),
		Notifier:    notify.NewLogSender(discardLogger()),
		Logger:      discardLogger(),
	}, "../../web/templates", false)

	// Create router - this triggers the panic if routing conflict exists
	mux := setupRouter(h, routerConfig{StaticDir: "../../web/static", Metrics: true, Logger: discardLogger()})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		allowAlt   []int // Alternative acceptable status codes
	}{
		{
			name:       "Root requires auth",
			method:     "GET",
			path:       "/",
			wantStatus: http.StatusFound,
		},
		{
			name:       "Static file access",
			method:     "GET",
			path:       "/static/style.css",
			wantStatus: http.StatusOK,
			allowAlt:   []int{http.StatusNotFound}, // File might not exist in test env
		},
		{
			name:       "Login form is public",
			method:     "GET",
			path:       "/login",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Remove requires auth",
			method:     "POST",
			path:       "/remove/1",
			wantStatus: http.StatusFound,
		},
		{
			name:       "Health check",
			method:     "GET",
			path:       "/healthz",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Metrics exposed",
			method:     "GET",
			path:       "/metrics",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			// Check if status matches expected or any alternative
			if len(tt.allowAlt) > 0 {
				acceptableStatuses := append([]int{tt.wantStatus}, tt.allowAlt...)
				assert.Contains(t, acceptableStatuses, w.Code,
					"%s %s returned unexpected status", tt.method, tt.path)
			} else {
				assert.Equal(t, tt.wantStatus, w.Code,
					"%s %s returned unexpected status", tt.method, tt.path)
			}
		})
	}

	t.Run("Security headers set", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})
}

func TestSetupRouterWithoutMetrics(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	h := handlers.NewHandlers(handlers.App{
		Credentials: auth.NewCredentials(db),
		Sessions:    session.NewManager(session.NewMemoryStore(), 0, nil),
		Ledger:      ledger.NewService(db),
		Notifier:    notify.NewLogSender(discardLogger()),
	}, "../../web/templates", false)

	mux := setupRouter(h, routerConfig{StaticDir: "../../web/static"})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestBootstrapAdmin(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()
	creds := auth.NewCredentials(db)
	ctx := context.Background()

	admin := config.AdminConfig{Username: "testuser", Password: "testpass123"}
	require.NoError(t, bootstrapAdmin(ctx, creds, admin, discardLogger()))
	// A second start with the same admin is a no-op.
	require.NoError(t, bootstrapAdmin(ctx, creds, admin, discardLogger()))

	_, err = creds.Authenticate(ctx, "testuser", "testpass123")
	assert.NoError(t, err)

	count, err := db.UserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, bootstrapAdmin(ctx, creds, config.AdminConfig{}, discardLogger()))
}

func TestNewSessionStore(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	assert.IsType(t, &session.MemoryStore{}, newSessionStore("memory", db))
	assert.IsType(t, &session.SQLStore{}, newSessionStore("sqlite", db))
}

func TestNewSender(t *testing.T) {
	sender, closeFn, err := newSender(config.NotifyConfig{Backend: "log"}, discardLogger())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &notify.LogSender{}, sender)

	sender, closeFn, err = newSender(config.NotifyConfig{
		Backend: "smtp",
		SMTP:    config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"},
	}, discardLogger())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &notify.SMTPSender{}, sender)
}

func TestRunInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: 70000\n"), 0o600))

	stderr := new(bytes.Buffer)
	err := run(context.Background(), []string{"-config", path}, stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port 70000")
}

func TestRunInvalidFlag(t *testing.T) {
	err := run(context.Background(), []string{"-nope"}, new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flag provided but not defined")
}

func TestSetupRouterUsesSharedAuthLimiter(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	h := handlers.NewHandlers(handlers.App{
		Credentials: auth.NewCredentials(db),
		Sessions:    session.NewManager(session.NewMemoryStore(), 0, nil),
		Ledger:      ledger.NewService(db),
		Notifier:    notify.NewLogSender(discardLogger()),
		Logger:      discardLogger(),
	}, "../../web/templates", false)

	limiter := middleware.AuthRateLimiter()
	mux := setupRouter(h, routerConfig{StaticDir: "../../web/static", Logger: discardLogger(), AuthLimiter: limiter})

	last := 0
	for range 6 {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=a&password=b"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "192.0.2.7:4000"
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
	assert.Equal(t, 1, limiter.Len(), "the pruner in run sees the limiter the router uses")
}
