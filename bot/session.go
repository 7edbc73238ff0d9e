package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zorium-chat/memebot/directory"
	"github.com/zorium-chat/memebot/telemetry"
)

// Gateway is the real-time transport the session drives. gateway.WS is the
// production implementation; tests supply fakes.
type Gateway interface {
	Dial(ctx context.Context) error
	Emit(event string, data any) error
	On(event string, fn func(json.RawMessage))
	Run(ctx context.Context) error
	Close() error
}

// Directory is the slice of the directory API the session needs.
type Directory interface {
	Validate(ctx context.Context) (string, error)
	Profile(ctx context.Context) (string, error)
	Servers(ctx context.Context) ([]directory.Server, error)
	Channels(ctx context.Context, serverID string) ([]directory.Channel, error)
}

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateSubscribing
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session owns the authenticate -> subscribe-all -> steady-state -> reconnect
// state machine. One Session drives one gateway; there is never more than one
// connection attempt in flight.
type Session struct {
	gw      Gateway
	dir     Directory
	router  *Router
	token   string
	prefix  string
	backoff *Backoff

	// callTimeout bounds blocking calls made from inside event handlers.
	callTimeout time.Duration

	mu            sync.Mutex
	state         State
	identity      Identity
	classifier    *Classifier
	subscriptions []string
	everAuthed    bool
}

// SessionConfig collects Session dependencies.
type SessionConfig struct {
	Gateway     Gateway
	Directory   Directory
	Router      *Router
	Token       string
	Prefix      string
	Backoff     *Backoff
	CallTimeout time.Duration
}

// NewSession builds a session and registers its gateway handlers.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		gw:          cfg.Gateway,
		dir:         cfg.Directory,
		router:      cfg.Router,
		token:       cfg.Token,
		prefix:      cfg.Prefix,
		backoff:     cfg.Backoff,
		callTimeout: cfg.CallTimeout,
	}
	if s.backoff == nil {
		s.backoff = &Backoff{Initial: time.Second, Max: 30 * time.Second}
	}
	if s.callTimeout == 0 {
		s.callTimeout = 10 * time.Second
	}
	return s
}

// Startup validates the credential and records the bot identity before any
// connection attempt. An invalid token is the one fatal startup condition.
func (s *Session) Startup(ctx context.Context) error {
	botID, err := s.dir.Validate(ctx)
	if err != nil {
		return fmt.Errorf("validate bot token: %w", err)
	}
	name, err := s.dir.Profile(ctx)
	if err != nil {
		// Identity name is a nicety for mention matching; keep going without it.
		slog.Warn("failed to fetch bot profile", slog.Any("err", err))
	}
	s.mu.Lock()
	s.identity = Identity{ID: botID, Name: name}
	s.mu.Unlock()
	slog.Info("bot token valid", slog.String("bot_id", botID), slog.String("name", name))
	return nil
}

// Run connects and keeps the session alive until ctx is canceled. Transport
// loss at any point drops back to disconnected and retries with backoff;
// subscription state is always rebuilt from scratch on the next auth.
func (s *Session) Run(ctx context.Context) error {
	s.gw.On("authenticated", func(data json.RawMessage) { s.onAuthenticated(ctx, data) })
	s.gw.On("messageEvent", func(data json.RawMessage) { s.onMessageEvent(ctx, data) })
	s.gw.On("error", func(data json.RawMessage) {
		slog.Warn("gateway error event", slog.String("data", string(data)))
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.setState(StateConnecting)
		if err := s.gw.Dial(ctx); err != nil {
			s.setState(StateDisconnected)
			slog.Warn("gateway dial failed", slog.Any("err", err))
			if !s.sleep(ctx, s.backoff.Next()) {
				return ctx.Err()
			}
			continue
		}

		s.setState(StateAuthenticating)
		if err := s.gw.Emit("authenticate", map[string]string{"botToken": s.token}); err != nil {
			slog.Warn("authenticate emit failed", slog.Any("err", err))
			_ = s.gw.Close()
			s.setState(StateDisconnected)
			if !s.sleep(ctx, s.backoff.Next()) {
				return ctx.Err()
			}
			continue
		}

		err := s.gw.Run(ctx)
		s.setState(StateDisconnected)
		s.clearSubscriptions()
		if ctx.Err() != nil {
			_ = s.gw.Close()
			return ctx.Err()
		}
		telemetry.Inc(telemetry.Reconnects)
		slog.Info("gateway connection lost; reconnecting", slog.Any("err", err))
		if !s.sleep(ctx, s.backoff.Next()) {
			return ctx.Err()
		}
	}
}

// sleep waits d or until cancellation; it reports whether the wait completed.
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// onAuthenticated handles the gateway's auth result. On success it records
// identity, rebuilds the subscription set, and enters steady state. On
// failure it reports and stays down; the server keeps the transport open but
// nothing is subscribed until intervention.
func (s *Session) onAuthenticated(ctx context.Context, data json.RawMessage) {
	var res struct {
		Success bool `json:"success"`
		Bot     *struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"bot"`
		User *struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"user"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		slog.Error("malformed authenticated payload", slog.Any("err", err))
		return
	}
	if !res.Success {
		telemetry.Inc(telemetry.AuthFailures)
		slog.Error("authentication failed", slog.String("message", res.Message))
		return
	}

	info := res.Bot
	if info == nil {
		info = res.User
	}
	s.mu.Lock()
	if info != nil {
		if info.ID != "" {
			s.identity.ID = info.ID
		}
		if info.Name != "" {
			s.identity.Name = info.Name
		}
	}
	s.classifier = NewClassifier(s.identity, s.prefix)
	identity := s.identity
	s.mu.Unlock()

	slog.Info("authenticated", slog.String("bot_id", identity.ID), slog.String("name", identity.Name))
	s.setState(StateSubscribing)
	s.subscribeAll(ctx)
	s.setState(StateActive)
	s.backoff.Reset()
	s.mu.Lock()
	s.everAuthed = true
	s.mu.Unlock()
}

// subscribeAll enumerates every server the credential can see and subscribes
// to the server scope plus every text (or untyped) channel. The set is always
// built from empty; nothing is diffed against a previous connection.
// Enumeration failures for one server must not abort the others.
func (s *Session) subscribeAll(ctx context.Context) {
	s.clearSubscriptions()

	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	servers, err := s.dir.Servers(cctx)
	cancel()
	if err != nil {
		slog.Error("failed to enumerate servers", slog.Any("err", err))
		return
	}
	slog.Info("subscribing", slog.Int("servers", len(servers)))

	for _, srv := range servers {
		if err := s.emitSubscribe("server", srv.ID); err != nil {
			slog.Warn("server subscribe failed", slog.String("server", srv.ID), slog.Any("err", err))
			continue
		}
		s.recordSubscription("server:" + srv.ID)

		cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
		channels, err := s.dir.Channels(cctx, srv.ID)
		cancel()
		if err != nil {
			slog.Warn("failed to list channels; continuing with other servers",
				slog.String("server", srv.Name), slog.Any("err", err))
			continue
		}
		for _, ch := range channels {
			if !ch.IsText() {
				continue
			}
			if err := s.emitSubscribe("channel", ch.ID); err != nil {
				slog.Warn("channel subscribe failed", slog.String("channel", ch.ID), slog.Any("err", err))
				continue
			}
			s.recordSubscription("channel:" + ch.ID)
		}
	}

	s.mu.Lock()
	n := len(s.subscriptions)
	s.mu.Unlock()
	telemetry.SetSubscribedChannels(n)
}

func (s *Session) emitSubscribe(scope, id string) error {
	return s.gw.Emit("subscribe", map[string]string{
		"botToken": s.token,
		"type":     scope,
		"id":       id,
	})
}

// onMessageEvent is the single entry point of the event pipeline. Handlers
// run to completion here, inside the gateway read loop, so events are
// processed strictly one at a time.
func (s *Session) onMessageEvent(ctx context.Context, data json.RawMessage) {
	telemetry.Inc(telemetry.EventsReceived)

	s.mu.Lock()
	classifier := s.classifier
	s.mu.Unlock()
	if classifier == nil {
		return // not authenticated yet
	}

	ev, err := DecodeMessageEvent(data)
	if err != nil {
		slog.Warn("malformed message event", slog.Any("err", err))
		return
	}
	action := classifier.Classify(ev)
	if action.Kind == Ignore {
		telemetry.Inc(telemetry.EventsIgnored)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	s.router.Dispatch(cctx, Destination{ServerID: ev.ServerID, ChannelID: ev.ChannelID}, action.Text)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	telemetry.SetConnectionState(int(st))
}

// CurrentState returns the lifecycle state for status reporting.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the recorded bot identity.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Ready reports whether the session has authenticated at least once.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.everAuthed
}

// Subscriptions returns a snapshot of the current subscription set as
// scope:id strings.
func (s *Session) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.subscriptions))
	copy(out, s.subscriptions)
	return out
}

func (s *Session) recordSubscription(key string) {
	s.mu.Lock()
	s.subscriptions = append(s.subscriptions, key)
	s.mu.Unlock()
}

func (s *Session) clearSubscriptions() {
	s.mu.Lock()
	s.subscriptions = nil
	s.mu.Unlock()
	telemetry.SetSubscribedChannels(0)
}
