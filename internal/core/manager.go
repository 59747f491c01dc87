package core

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keepmind9/villabot/internal/bot"
	"github.com/keepmind9/villabot/internal/event"
	"github.com/keepmind9/villabot/internal/logger"
	"github.com/keepmind9/villabot/pkg/constants"
	"github.com/sirupsen/logrus"
)

// Manager is the connection manager. It owns the registry of active bots,
// one supervisor per websocket bot and the webhook server.
type Manager struct {
	config     *Config
	handler    EventHandler
	dialer     Dialer
	httpClient *http.Client

	mu       sync.RWMutex
	active   map[string]*bot.Bot // Bot ID -> bot that can currently receive events
	states   map[string]State    // Bot ID -> connection state
	sessions map[string]*session // Bot ID -> websocket session

	dedup  *dedupWindow
	server *http.Server

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopping atomic.Bool
	stopOnce sync.Once
}

// Option customizes a Manager.
type Option func(*Manager)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithHTTPClient sets the client used for REST calls.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// NewManager creates a manager for a validated configuration.
func NewManager(config *Config, handler EventHandler, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		config:   config,
		handler:  handler,
		dialer:   NewDialer(),
		active:   make(map[string]*bot.Bot),
		states:   make(map[string]State),
		sessions: make(map[string]*session),
		dedup:    newDedupWindow(constants.DedupWindowSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the webhook server and the websocket supervisors, then blocks
// until ctx is done. Call Stop afterwards to log out and release resources.
func (m *Manager) Run(ctx context.Context) error {
	logger.WithField("bots", len(m.config.Bots)).Info("starting-villa-manager")

	if paths := m.config.WebhookPaths(); len(paths) > 0 {
		if err := m.startWebhookServer(); err != nil {
			return err
		}
	}

	for _, bc := range m.config.Bots {
		if !bc.IsWebsocket() {
			continue
		}
		b, err := bot.New(bc.Info(), m.config.APIBaseURL, m.httpClient)
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		s := newSession(m, b)

		m.mu.Lock()
		m.sessions[b.SelfID()] = s
		m.states[b.SelfID()] = StateDisconnected
		m.mu.Unlock()

		m.wg.Add(1)
		go m.supervise(s)
	}

	<-ctx.Done()
	return nil
}

// Stop logs out every active websocket session, stops the supervisors and
// shuts the webhook server down.
func (m *Manager) Stop() error {
	m.stopOnce.Do(func() {
		logger.Info("stopping-villa-manager")
		m.stopping.Store(true)

		m.mu.RLock()
		sessions := make([]*session, 0, len(m.sessions))
		for _, s := range m.sessions {
			sessions = append(sessions, s)
		}
		m.mu.RUnlock()

		loggedOut := 0
		for _, s := range sessions {
			if m.State(s.bot.SelfID()) != StateActive {
				continue
			}
			if err := s.logout(); err != nil {
				logger.WithFields(logrus.Fields{
					"bot_id": s.bot.SelfID(),
					"error":  err,
				}).Warn("failed-to-send-logout")
				continue
			}
			loggedOut++
		}
		if loggedOut > 0 {
			time.Sleep(m.config.Connection.LogoutGrace)
		}

		m.cancel()
		m.wg.Wait()

		if m.server != nil {
			logger.Info("stopping-webhook-server")
			ctx, cancel := context.WithTimeout(context.Background(), constants.WebhookShutdownTimeout)
			defer cancel()

			if err := m.server.Shutdown(ctx); err != nil {
				logger.WithField("error", err).Error("failed-to-gracefully-stop-webhook-server")
				m.server.Close()
			} else {
				logger.Info("webhook-server-stopped-gracefully")
			}
		}

		logger.Info("villa-manager-stopped")
	})
	return nil
}

// State returns the connection state of a bot. Bots the manager has never
// seen are reported as disconnected.
func (m *Manager) State(botID string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.states[botID]; ok {
		return s
	}
	return StateDisconnected
}

// Bot returns a bot from the active registry.
func (m *Manager) Bot(botID string) (*bot.Bot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.active[botID]
	return b, ok
}

// Bots returns a snapshot of the active registry.
func (m *Manager) Bots() []*bot.Bot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*bot.Bot, 0, len(m.active))
	for _, b := range m.active {
		out = append(out, b)
	}
	return out
}

func (m *Manager) setState(botID string, s State) {
	m.mu.Lock()
	prev := m.states[botID]
	m.states[botID] = s
	m.mu.Unlock()

	if prev != s {
		logger.WithFields(logrus.Fields{
			"bot_id": botID,
			"from":   prev,
			"to":     s,
		}).Debug("connection-state-changed")
	}
}

func (m *Manager) register(b *bot.Bot) {
	m.mu.Lock()
	m.active[b.SelfID()] = b
	m.states[b.SelfID()] = StateActive
	m.mu.Unlock()

	logger.WithField("bot_id", b.SelfID()).Info("bot-connected")
}

func (m *Manager) unregister(botID string) {
	m.mu.Lock()
	_, ok := m.active[botID]
	delete(m.active, botID)
	m.mu.Unlock()

	if ok {
		logger.WithField("bot_id", botID).Info("bot-disconnected")
	}
}

// dispatch hands a prepared event to the application without blocking the
// caller. Handler panics are recovered.
func (m *Manager) dispatch(b *bot.Bot, ev event.Event) {
	logger.WithFields(logrus.Fields{
		"bot_id":     b.SelfID(),
		"event":      ev.Name(),
		"event_id":   ev.Header().EventID,
		"session_id": ev.SessionID(),
		"to_me":      ev.IsToMe(),
	}).Debug("dispatching-event")

	if m.handler == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logrus.Fields{
					"bot_id": b.SelfID(),
					"event":  ev.Name(),
					"panic":  r,
				}).Error("event-handler-panic-recovered")
			}
		}()
		m.handler(m.ctx, b, ev)
	}()
}

// seen reports whether an event was already delivered for this bot.
func (m *Manager) seen(botID, eventID string) bool {
	if m.dedup.Seen(dedupKey(botID, eventID)) {
		logger.WithFields(logrus.Fields{
			"bot_id":   botID,
			"event_id": eventID,
		}).Debug("duplicate-event-dropped")
		return true
	}
	return false
}

// startWebhookServer binds the listen address and serves callbacks in the
// background.
func (m *Manager) startWebhookServer() error {
	addr := m.config.WebhookServer.Listen

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	m.server = &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.WithFields(logrus.Fields{
		"address": ln.Addr().String(),
		"paths":   m.config.WebhookPaths(),
	}).Info("webhook-server-listening")

	go func() {
		if err := m.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.WithField("error", err).Error("webhook-server-error")
		}
		logger.Info("webhook-server-stopped")
	}()
	return nil
}
