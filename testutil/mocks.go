// Package testutil provides httptest doubles for the bot's two HTTP
// collaborators: the memegen template provider and the bot directory API.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockProviderServer mocks the template provider's GET /templates endpoint.
type MockProviderServer struct {
	*httptest.Server

	mu        sync.Mutex
	templates []map[string]any
	failCode  int
	failLeft  int // -1 means fail forever
	calls     int
}

// NewMockProviderServer creates a provider double. The server is closed via t.Cleanup.
func NewMockProviderServer(t *testing.T) *MockProviderServer {
	t.Helper()
	m := &MockProviderServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/templates" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		m.calls++
		if m.failCode != 0 && (m.failLeft < 0 || m.failLeft > 0) {
			if m.failLeft > 0 {
				m.failLeft--
			}
			w.WriteHeader(m.failCode)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.templates)
	}))
	t.Cleanup(m.Close)
	return m
}

// SetTemplates replaces the catalog the mock serves.
func (m *MockProviderServer) SetTemplates(templates []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = templates
}

// FailTemplates makes every subsequent fetch return the given status.
func (m *MockProviderServer) FailTemplates(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCode = code
	m.failLeft = -1
}

// FailTemplatesN fails the next n fetches with the given status, then recovers.
func (m *MockProviderServer) FailTemplatesN(code, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCode = code
	m.failLeft = n
}

// TemplateCalls returns how many fetches the mock has served.
func (m *MockProviderServer) TemplateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// SentMessage is one captured POST /{serverId}/messages/send body.
type SentMessage struct {
	ServerID  string
	ChannelID string
	Content   string
}

// MockDirectoryServer mocks the bot directory API: validate, profile, servers,
// channels, and message send. Sent messages are captured for assertions.
type MockDirectoryServer struct {
	*httptest.Server

	mu       sync.Mutex
	token    string
	botID    string
	botName  string
	servers  []map[string]any
	channels map[string][]map[string]any
	sendFail bool
	sent     []SentMessage
}

// NewMockDirectoryServer creates a directory double accepting the given token.
func NewMockDirectoryServer(t *testing.T, token string) *MockDirectoryServer {
	t.Helper()
	m := &MockDirectoryServer{
		token:    token,
		botID:    "bot1",
		botName:  "MemeBot",
		channels: make(map[string][]map[string]any),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Close)
	return m
}

// SetIdentity sets the id and name the mock reports.
func (m *MockDirectoryServer) SetIdentity(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botID = id
	m.botName = name
}

// AddServer registers a server and its channels. Channel entries need id,
// name and type keys.
func (m *MockDirectoryServer) AddServer(id, name string, channels []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, map[string]any{"id": id, "name": name})
	m.channels[id] = channels
}

// FailSends makes POST message sends return 500.
func (m *MockDirectoryServer) FailSends(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendFail = fail
}

// Sent returns the captured messages in send order.
func (m *MockDirectoryServer) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *MockDirectoryServer) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	authed := r.Header.Get("X-Bot-Token") == m.token

	writeJSON := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	switch {
	case r.URL.Path == "/validate":
		writeJSON(map[string]any{"valid": authed, "bot_id": m.botID})
	case r.URL.Path == "/profile":
		if !authed {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(map[string]any{"name": m.botName})
	case r.URL.Path == "/servers":
		if !authed {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(map[string]any{"servers": m.servers})
	case r.Method == http.MethodPost && pathSuffix(r.URL.Path) == "messages/send":
		if !authed || m.sendFail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var body struct {
			ChannelID string `json:"channelId"`
			Content   string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.sent = append(m.sent, SentMessage{
			ServerID:  pathSegment(r.URL.Path, 0),
			ChannelID: body.ChannelID,
			Content:   body.Content,
		})
		writeJSON(map[string]any{"ok": true})
	case pathSuffix(r.URL.Path) == "channels":
		if !authed {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		srv := pathSegment(r.URL.Path, 0)
		writeJSON(map[string]any{"channels": m.channels[srv]})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
