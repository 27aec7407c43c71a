// SPDX-License-Identifier: GPL-3.0-or-later
package notification

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"
	"github.com/CrawX/go-imap-sentinel/eventbus"
	"github.com/CrawX/go-imap-sentinel/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const TEST_USER = "u1"

type fakeStates map[string]*domain.MonitoringState

func (f fakeStates) GetState(_ context.Context, userId string) (*domain.MonitoringState, error) {
	state, ok := f[userId]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userId, domain.ErrStateNotFound)
	}
	return state, nil
}

type fakeControl struct {
	states fakeStates
	err    error
}

func (f *fakeControl) set(userId string, status domain.Status) (*domain.MonitoringState, error) {
	if f.err != nil {
		return nil, f.err
	}
	state, err := f.states.GetState(context.Background(), userId)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userId, domain.ErrAccountUnknown)
	}
	state.Status = status
	return state, nil
}

func (f *fakeControl) Activate(_ context.Context, userId string) (*domain.MonitoringState, error) {
	return f.set(userId, domain.StatusIdle)
}

func (f *fakeControl) Deactivate(_ context.Context, userId string) (*domain.MonitoringState, error) {
	return f.set(userId, domain.StatusPaused)
}

func setup(t *testing.T, cfgs ...ConfigFunc) (*Gateway, *eventbus.Bus, *fakeControl) {
	log.InitLogging("error")
	bus := eventbus.NewBus()
	states := fakeStates{
		TEST_USER: {
			UserId:              TEST_USER,
			Status:              domain.StatusIdle,
			ConsecutiveFailures: 1,
			LastCheckedAt:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			LastError:           "timeout",
			Cursors: map[string]domain.Cursor{
				"INBOX":   {Folder: "INBOX", UidValidity: 7, LastUid: 102},
				"Archive": {Folder: "Archive", UidValidity: 3, LastUid: 9},
			},
		},
		"paused": {UserId: "paused", Status: domain.StatusPaused},
	}
	control := &fakeControl{states: states}
	return NewGateway(bus, states, control, cfgs...), bus, control
}

type frame map[string]string

func readFrame(t *testing.T, r *bufio.Reader) frame {
	f := frame{}
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if len(line) == 0 {
			if len(f) == 0 {
				continue
			}
			return f
		}
		parts := strings.SplitN(line, ":", 2)
		require.Len(t, parts, 2)
		f[parts[0]] = parts[1]
	}
}

func connect(t *testing.T, server *httptest.Server, header http.Header) (*bufio.Reader, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/monitoring/sse", nil)
	require.NoError(t, err)
	req.Header = header
	req.Header.Set(UserHeader, TEST_USER)

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	t.Cleanup(func() { resp.Body.Close() })

	return bufio.NewReader(resp.Body), cancel
}

func TestStream_RelaysEventsInOrder(t *testing.T) {
	g, bus, _ := setup(t)
	server := httptest.NewServer(g.Handler())
	defer server.Close()

	r, cancel := connect(t, server, http.Header{})
	assert.Equal(t, "connected", readFrame(t, r)["event"])

	bus.Publish(TEST_USER, domain.SpamDetected, domain.EventPayload{Uid: 101, Folder: "INBOX", Confidence: 0.9, Moved: true})
	bus.Publish(TEST_USER, domain.NewMessage, domain.EventPayload{Uid: 102, Folder: "INBOX"})
	bus.Publish("other", domain.NewMessage, domain.EventPayload{Uid: 1})

	for i, expected := range []domain.EventType{domain.SpamDetected, domain.NewMessage} {
		f := readFrame(t, r)
		assert.Equal(t, "email_event", f["event"])
		assert.Equal(t, fmt.Sprint(i+1), f["id"])

		event := domain.Event{}
		require.NoError(t, json.Unmarshal([]byte(f["data"]), &event))
		assert.Equal(t, expected, event.Type)
		assert.Equal(t, TEST_USER, event.UserId)
		assert.Equal(t, uint64(i+1), event.Sequence)
	}

	cancel()
	assert.Eventually(t, func() bool {
		return bus.Subscribers(TEST_USER) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStream_ReplaysAfterLastEventId(t *testing.T) {
	g, bus, _ := setup(t)
	server := httptest.NewServer(g.Handler())
	defer server.Close()

	for uid := 1; uid <= 3; uid++ {
		bus.Publish(TEST_USER, domain.NewMessage, domain.EventPayload{Uid: uint32(uid)})
	}

	r, cancel := connect(t, server, http.Header{LastEventHeader: []string{"1"}})
	defer cancel()
	assert.Equal(t, "connected", readFrame(t, r)["event"])
	assert.Equal(t, "2", readFrame(t, r)["id"])
	assert.Equal(t, "3", readFrame(t, r)["id"])
}

func TestStream_Ping(t *testing.T) {
	g, _, _ := setup(t, PingInterval(20*time.Millisecond))
	server := httptest.NewServer(g.Handler())
	defer server.Close()

	r, cancel := connect(t, server, http.Header{})
	defer cancel()
	assert.Equal(t, "connected", readFrame(t, r)["event"])
	assert.Equal(t, "ping", readFrame(t, r)["event"])
}

func TestStream_BadRequests(t *testing.T) {
	g, bus, _ := setup(t)
	tests := []struct {
		name   string
		header http.Header
		status int
	}{
		{"nouser", http.Header{}, http.StatusUnauthorized},
		{"badid", http.Header{UserHeader: []string{TEST_USER}, LastEventHeader: []string{"abc"}}, http.StatusBadRequest},
		{"unknownuser", http.Header{UserHeader: []string{"nobody"}}, http.StatusNotFound},
		{"paused", http.Header{UserHeader: []string{"paused"}}, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/monitoring/sse", nil)
			req.Header = tc.header
			g.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Equal(t, 0, bus.Subscribers("nobody"))
	assert.Equal(t, 0, bus.Subscribers("paused"))
}

func TestStatus(t *testing.T) {
	g, _, _ := setup(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/monitoring/status", nil)
	req.Header.Set(UserHeader, TEST_USER)
	g.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"user_id": "u1",
		"status": "idle",
		"consecutive_failures": 1,
		"last_checked_at": "2024-03-01T12:00:00Z",
		"last_error": "timeout",
		"cursors": [
			{"folder": "Archive", "uid_validity": 3, "last_uid": 9},
			{"folder": "INBOX", "uid_validity": 7, "last_uid": 102}
		]
	}`, rec.Body.String())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/monitoring/status", nil)
	req.Header.Set(UserHeader, "nobody")
	g.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivateDeactivate(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		user   string
		err    error
		status int
		state  domain.Status
	}{
		{"deactivate", "/monitoring/deactivate", TEST_USER, nil, http.StatusOK, domain.StatusPaused},
		{"activate", "/monitoring/activate", TEST_USER, nil, http.StatusOK, domain.StatusIdle},
		{"unknown", "/monitoring/activate", "nobody", nil, http.StatusNotFound, ""},
		{"failure", "/monitoring/deactivate", TEST_USER, errors.New("database is locked"), http.StatusInternalServerError, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, _, control := setup(t)
			control.err = tc.err

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			req.Header.Set(UserHeader, tc.user)
			g.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				view := stateView{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
				assert.Equal(t, tc.state, view.Status)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	g, _, _ := setup(t)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServe_StopsWithContext(t *testing.T) {
	g, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() { done <- g.Serve(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not stop")
	}
}
