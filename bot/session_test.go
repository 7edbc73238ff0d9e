package bot

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zorium-chat/memebot/directory"
)

// fakeGateway scripts the transport: Dial always succeeds, Emit answers an
// authenticate frame synchronously with a canned payload, and Run blocks until
// the test drops the connection or the context ends.
type fakeGateway struct {
	mu       sync.Mutex
	handlers map[string][]func(json.RawMessage)
	emits    []string
	authData json.RawMessage
	runC     chan error
	dials    int
}

func newFakeGateway(authData string) *fakeGateway {
	return &fakeGateway{
		handlers: make(map[string][]func(json.RawMessage)),
		authData: json.RawMessage(authData),
		runC:     make(chan error),
	}
}

func (g *fakeGateway) Dial(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dials++
	return nil
}

func (g *fakeGateway) On(event string, fn func(json.RawMessage)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[event] = append(g.handlers[event], fn)
}

func (g *fakeGateway) Emit(event string, data any) error {
	b, _ := json.Marshal(data)
	g.mu.Lock()
	g.emits = append(g.emits, event+" "+string(b))
	fns := slices.Clone(g.handlers["authenticated"])
	auth := g.authData
	g.mu.Unlock()
	if event == "authenticate" {
		for _, fn := range fns {
			fn(auth)
		}
	}
	return nil
}

func (g *fakeGateway) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-g.runC:
		return err
	}
}

func (g *fakeGateway) Close() error { return nil }

func (g *fakeGateway) deliver(event, data string) {
	g.mu.Lock()
	fns := slices.Clone(g.handlers[event])
	g.mu.Unlock()
	for _, fn := range fns {
		fn(json.RawMessage(data))
	}
}

func (g *fakeGateway) dropConnection() {
	g.runC <- errors.New("transport lost")
}

func (g *fakeGateway) emitted() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.emits)
}

// fakeDirectory serves a fixed server/channel topology.
type fakeDirectory struct {
	botID    string
	name     string
	servers  []directory.Server
	channels map[string][]directory.Channel
	chanErr  map[string]error
}

func (d *fakeDirectory) Validate(context.Context) (string, error) { return d.botID, nil }
func (d *fakeDirectory) Profile(context.Context) (string, error)  { return d.name, nil }
func (d *fakeDirectory) Servers(context.Context) ([]directory.Server, error) {
	return d.servers, nil
}

func (d *fakeDirectory) Channels(_ context.Context, serverID string) ([]directory.Channel, error) {
	if err := d.chanErr[serverID]; err != nil {
		return nil, err
	}
	return d.channels[serverID], nil
}

func newTestTopology() *fakeDirectory {
	return &fakeDirectory{
		botID: "bot1",
		name:  "MemeBot",
		servers: []directory.Server{
			{ID: "srv1", Name: "General"},
			{ID: "srv2", Name: "Gaming"},
		},
		channels: map[string][]directory.Channel{
			"srv1": {
				{ID: "ch1", Name: "general", Type: "text"},
				{ID: "ch2", Name: "voice", Type: "voice"},
				{ID: "ch3", Name: "untyped"},
			},
			"srv2": {
				{ID: "ch4", Name: "lobby", Type: "text"},
			},
		},
		chanErr: map[string]error{},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

const authOK = `{"success":true,"bot":{"id":"bot1","name":"MemeBot"}}`

func newTestSession(gw Gateway, dir Directory, replier Replier) *Session {
	router := NewRouter(replier, &staticCatalog{}, imageBase)
	return NewSession(SessionConfig{
		Gateway:   gw,
		Directory: dir,
		Router:    router,
		Token:     "tok",
		Prefix:    "!meme",
		Backoff:   &Backoff{Initial: time.Millisecond, Max: 4 * time.Millisecond},
	})
}

func sortedSubscriptions(s *Session) []string {
	subs := s.Subscriptions()
	sort.Strings(subs)
	return subs
}

func TestSessionSubscribesEverythingOnAuth(t *testing.T) {
	gw := newFakeGateway(authOK)
	s := newTestSession(gw, newTestTopology(), &recordingReplier{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { defer close(done); _ = s.Run(ctx) }()

	waitFor(t, "session active", func() bool { return s.CurrentState() == StateActive })

	want := []string{"channel:ch1", "channel:ch3", "channel:ch4", "server:srv1", "server:srv2"}
	if got := sortedSubscriptions(s); !slices.Equal(got, want) {
		t.Errorf("subscriptions = %v, want %v", got, want)
	}
	if id := s.Identity(); id.ID != "bot1" || id.Name != "MemeBot" {
		t.Errorf("identity = %+v", id)
	}
	if !s.Ready() {
		t.Error("session must report ready after first auth")
	}

	emits := gw.emitted()
	if len(emits) == 0 || !strings.HasPrefix(emits[0], "authenticate ") {
		t.Errorf("first emit must be authenticate, got %v", emits)
	}
	for _, e := range emits {
		if strings.HasPrefix(e, "subscribe ") && !strings.Contains(e, `"botToken":"tok"`) {
			t.Errorf("subscribe frame missing token: %s", e)
		}
	}

	cancel()
	<-done
}

func TestSessionContinuesPastChannelEnumerationFailure(t *testing.T) {
	dir := newTestTopology()
	dir.chanErr["srv1"] = errors.New("boom")
	gw := newFakeGateway(authOK)
	s := newTestSession(gw, dir, &recordingReplier{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	waitFor(t, "session active", func() bool { return s.CurrentState() == StateActive })

	// srv1's channels are lost but srv2 must still be fully subscribed.
	want := []string{"channel:ch4", "server:srv1", "server:srv2"}
	if got := sortedSubscriptions(s); !slices.Equal(got, want) {
		t.Errorf("subscriptions = %v, want %v", got, want)
	}
}

func TestSessionAuthFailureDoesNotSubscribe(t *testing.T) {
	gw := newFakeGateway(`{"success":false,"message":"bad token"}`)
	s := newTestSession(gw, newTestTopology(), &recordingReplier{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	waitFor(t, "authenticate emit", func() bool { return len(gw.emitted()) > 0 })

	if s.Ready() {
		t.Error("session must not be ready after auth failure")
	}
	if got := s.Subscriptions(); len(got) != 0 {
		t.Errorf("subscriptions = %v, want none", got)
	}
	for _, e := range gw.emitted() {
		if strings.HasPrefix(e, "subscribe ") {
			t.Errorf("must not subscribe after auth failure: %s", e)
		}
	}
}

func TestSessionReconnectRebuildsSubscriptions(t *testing.T) {
	gw := newFakeGateway(authOK)
	s := newTestSession(gw, newTestTopology(), &recordingReplier{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	waitFor(t, "session active", func() bool { return s.CurrentState() == StateActive })
	before := sortedSubscriptions(s)

	gw.dropConnection()
	waitFor(t, "reconnect", func() bool {
		gw.mu.Lock()
		dials := gw.dials
		gw.mu.Unlock()
		return dials >= 2 && s.CurrentState() == StateActive
	})

	after := sortedSubscriptions(s)
	if !slices.Equal(before, after) {
		t.Errorf("subscription cover changed across reconnect: before %v, after %v", before, after)
	}
}

func TestSessionHandlesMessageEventEndToEnd(t *testing.T) {
	gw := newFakeGateway(authOK)
	replier := &recordingReplier{}
	s := newTestSession(gw, newTestTopology(), replier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()
	waitFor(t, "session active", func() bool { return s.CurrentState() == StateActive })

	gw.deliver("messageEvent", `{
		"type": "new_message",
		"data": {
			"content": "!meme generate drake \"A\" | \"B\"",
			"senderId": "u1",
			"channelId": "ch1",
			"serverId": "srv1",
			"isDirect": false
		}
	}`)

	waitFor(t, "reply", func() bool { return len(replier.sent) == 1 })
	if got := replier.sent[0]; got != "https://api.memegen.link/images/drake/A/B.png" {
		t.Errorf("reply = %q", got)
	}

	// Self-authored and direct messages never produce replies.
	gw.deliver("messageEvent", `{"content":"!meme help","senderId":"bot1","serverId":"srv1","channelId":"ch1"}`)
	gw.deliver("messageEvent", `{"content":"!meme help","senderId":"u1","isDirect":true,"serverId":"srv1","channelId":"ch1"}`)
	time.Sleep(20 * time.Millisecond)
	if len(replier.sent) != 1 {
		t.Errorf("replies = %q, want only the first", replier.sent)
	}
}

func TestSessionStartup(t *testing.T) {
	dir := newTestTopology()
	s := newTestSession(newFakeGateway(authOK), dir, &recordingReplier{})
	if err := s.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if id := s.Identity(); id.ID != "bot1" || id.Name != "MemeBot" {
		t.Errorf("identity = %+v", id)
	}
	if s.Ready() {
		t.Error("Startup alone must not mark the session ready")
	}
}
