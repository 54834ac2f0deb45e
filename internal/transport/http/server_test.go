package httptransport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ytget/stream-downloader/internal/controller"
	"github.com/ytget/stream-downloader/internal/model"
	"github.com/ytget/stream-downloader/internal/notify"
)

func newTestServer(t *testing.T) (*Server, *notify.Hub) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := notify.NewHub(log, 8)
	handlers := map[string]controller.HandlerFunc{
		"echo": func(_ context.Context, params json.RawMessage) (any, error) {
			return params, nil
		},
		"fail": func(_ context.Context, params json.RawMessage) (any, error) {
			switch string(params) {
			case `"input"`:
				return nil, fmt.Errorf("%w: name is empty", model.ErrInvalidInput)
			case `"missing"`:
				return nil, model.ErrNotFound
			case `"busy"`:
				return nil, model.ErrNoSuchTask
			case `"store"`:
				return nil, model.StoreError("find item", errors.New("connection refused"))
			case `"panic"`:
				panic("boom")
			}
			return nil, errors.New("unexpected")
		},
	}
	return NewServer(log, handlers, hub), hub
}

func TestCommand(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/ipc/echo", strings.NewReader(`{"id":1}`))
	req.Header.Set(requestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "req-1", rec.Header().Get(requestIDHeader))
	require.JSONEq(t, `{"result":{"id":1}}`, rec.Body.String())
}

func TestCommandErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		method string
		body   string
		status int
		code   string
	}{
		{"Unknown command", "/ipc/nope", http.MethodPost, "", http.StatusNotFound, codeUnknownCommand},
		{"Invalid input", "/ipc/fail", http.MethodPost, `"input"`, http.StatusBadRequest, codeInvalidInput},
		{"Not found", "/ipc/fail", http.MethodPost, `"missing"`, http.StatusNotFound, codeNotFound},
		{"Invalid transition", "/ipc/fail", http.MethodPost, `"busy"`, http.StatusConflict, codeInvalidTransition},
		{"Store failure", "/ipc/fail", http.MethodPost, `"store"`, http.StatusServiceUnavailable, codeStoreFailure},
		{"Internal", "/ipc/fail", http.MethodPost, `"other"`, http.StatusInternalServerError, codeInternal},
		{"Panic", "/ipc/fail", http.MethodPost, `"panic"`, http.StatusInternalServerError, codeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))

			require.Equal(t, tc.status, rec.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestCommandRequiresPost(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ipc/echo", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEventsStream(t *testing.T) {
	s, hub := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.Emit(model.EventStart, model.StatusEvent{ID: 3, Status: model.StatusDownloading})

	reader := bufio.NewReader(resp.Body)
	eventLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	dataLine, err := reader.ReadString('\n')
	require.NoError(t, err)

	require.Equal(t, "event: "+model.EventStart+"\n", eventLine)

	var payload model.StatusEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(dataLine), "data: ")), &payload))
	require.Equal(t, int64(3), payload.ID)
	require.Equal(t, model.StatusDownloading, payload.Status)
}
