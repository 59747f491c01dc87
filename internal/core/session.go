package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keepmind9/villabot/internal/api"
	"github.com/keepmind9/villabot/internal/bot"
	"github.com/keepmind9/villabot/internal/event"
	"github.com/keepmind9/villabot/internal/frame"
	"github.com/keepmind9/villabot/internal/logger"
	"github.com/keepmind9/villabot/internal/payload"
	"github.com/keepmind9/villabot/internal/villaerr"
	"github.com/keepmind9/villabot/pkg/constants"
	"github.com/sirupsen/logrus"
)

// session is the WebSocket connection state of one bot.
type session struct {
	m   *Manager
	bot *bot.Bot

	// mu serializes writes and guards the fields below.
	mu       sync.Mutex
	conn     Conn
	info     *api.WebsocketInfo
	seq      uint64
	hbCancel context.CancelFunc
	hbDone   chan struct{}
}

func newSession(m *Manager, b *bot.Bot) *session {
	return &session{m: m, bot: b}
}

// supervise keeps the bot connected until the manager stops or the server
// revokes the connection.
func (m *Manager) supervise(s *session) {
	defer m.wg.Done()
	botID := s.bot.SelfID()

	for {
		err := s.run(m.ctx)
		if m.ctx.Err() != nil || m.stopping.Load() {
			return
		}
		if !villaerr.IsRetryable(err) {
			logger.WithFields(logrus.Fields{
				"bot_id": botID,
				"error":  err,
			}).Warn("connection-revoked-not-reconnecting")
			return
		}

		delay := m.config.Connection.ReconnectDelay
		logger.WithFields(logrus.Fields{
			"bot_id": botID,
			"error":  err,
			"delay":  delay,
		}).Warn("connection-lost-reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// run performs one connect, login and receive cycle.
func (s *session) run(ctx context.Context) error {
	m := s.m
	botID := s.bot.SelfID()

	m.setState(botID, StateConnecting)
	info, err := s.bot.API().GetWebsocketInfo(ctx, s.bot.Info().TestVillaID)
	if err != nil {
		m.setState(botID, StateDisconnected)
		return fmt.Errorf("failed to get websocket info: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.config.Connection.ConnectTimeout)
	conn, err := m.dialer.Dial(dialCtx, info.WebsocketURL)
	cancel()
	if err != nil {
		m.setState(botID, StateDisconnected)
		return err
	}

	logger.WithFields(logrus.Fields{
		"bot_id": botID,
		"url":    info.WebsocketURL,
	}).Debug("websocket-connected")

	s.mu.Lock()
	s.conn = conn
	s.info = info
	s.seq = 0
	s.mu.Unlock()

	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()
	defer s.teardown(conn)

	// Reads block until data arrives; closing the socket unblocks them.
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	m.setState(botID, StateAuthenticating)
	if err := s.login(conn); err != nil {
		return err
	}

	if _, err := s.bot.Profile(); err != nil {
		s.bot.SetProfile(event.Robot{
			Template: event.Template{ID: botID},
			VillaID:  event.ID(s.bot.Info().TestVillaID),
		})
	}
	m.register(s.bot)
	s.startHeartbeat(connCtx, m.config.Connection.HeartbeatInterval)

	return s.receive(ctx, conn)
}

func (s *session) login(conn Conn) error {
	s.mu.Lock()
	if s.info.DeviceID == "" {
		s.info.DeviceID = uuid.NewString()
	}
	info := *s.info
	s.mu.Unlock()

	msg := payload.Login{
		UID:      uint64(info.UID),
		Token:    s.bot.LoginToken(),
		Platform: info.Platform,
		AppID:    info.AppID,
		DeviceID: info.DeviceID,
		Region:   constants.DefaultLoginRegion,
	}
	if err := s.write(msg.Frame); err != nil {
		return fmt.Errorf("%w: send login: %w", villaerr.ErrReconnect, err)
	}

	data, err := conn.ReadFrame()
	if err != nil {
		return fmt.Errorf("%w: read login reply: %w", villaerr.ErrReconnect, err)
	}
	f, err := frame.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %w", villaerr.ErrReconnect, err)
	}
	in, err := payload.Classify(f)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"bot_id": s.bot.SelfID(),
			"error":  err,
		}).Error("login-rejected")
		return err
	}
	reply, ok := in.(*payload.LoginReply)
	if !ok {
		return fmt.Errorf("%w: expected login reply, got %s", villaerr.ErrReconnect, f.BizType)
	}

	logger.WithFields(logrus.Fields{
		"bot_id":  s.bot.SelfID(),
		"conn_id": reply.ConnID,
	}).Info("login-succeeded")
	return nil
}

// receive processes frames in arrival order until the connection ends.
func (s *session) receive(ctx context.Context, conn Conn) error {
	botID := s.bot.SelfID()

	for {
		data, err := conn.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: read: %w", villaerr.ErrReconnect, err)
		}

		f, err := frame.Decode(data)
		if err != nil {
			return fmt.Errorf("%w: %w", villaerr.ErrReconnect, err)
		}

		in, err := payload.Classify(f)
		if err != nil {
			if errors.Is(err, villaerr.ErrMalformedFrame) {
				return fmt.Errorf("%w: %w", villaerr.ErrReconnect, err)
			}
			logger.WithFields(logrus.Fields{
				"bot_id":   botID,
				"biz_type": f.BizType,
				"seq":      f.ID,
				"payload":  logger.Truncate(f.Body),
				"error":    err,
			}).Warn("dropping-frame")
			continue
		}

		switch v := in.(type) {
		case *payload.HeartBeatReply:
			logger.WithFields(logrus.Fields{
				"bot_id":           botID,
				"server_timestamp": v.ServerTimestamp,
			}).Trace("heartbeat-reply")
		case *payload.LoginReply:
			logger.WithField("bot_id", botID).Debug("unexpected-login-reply")
		case *payload.LogoutReply:
			logger.WithFields(logrus.Fields{
				"bot_id": botID,
				"code":   v.Code,
			}).Info("logout-reply-received")
			return fmt.Errorf("%w: logged out", villaerr.ErrReconnect)
		case *payload.KickOff:
			logger.WithFields(logrus.Fields{
				"bot_id": botID,
				"code":   v.Code,
				"reason": v.Reason,
			}).Warn("kicked-off-by-server")
			return fmt.Errorf("%w: kicked off (code %d): %s", villaerr.ErrDisconnect, v.Code, v.Reason)
		case *payload.Shutdown:
			logger.WithField("bot_id", botID).Info("server-shutting-down")
			return fmt.Errorf("%w: server shutdown", villaerr.ErrReconnect)
		case *payload.EventFrame:
			s.handleEvent(v)
		}
	}
}

func (s *session) handleEvent(ef *payload.EventFrame) {
	botID := s.bot.SelfID()
	s.bot.SetProfile(ef.Record.Robot)

	if s.m.seen(botID, ef.Record.ID) {
		return
	}
	s.m.dispatch(s.bot, event.Prepare(ef.Event, botID))
}

// write builds a frame with the next outbound sequence id and sends it.
func (s *session) write(build func(seq uint64) frame.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	f := build(s.seq)
	s.seq++
	return s.conn.WriteFrame(frame.Encode(f))
}

func (s *session) startHeartbeat(ctx context.Context, interval time.Duration) {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.hbCancel = cancel
	s.hbDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				hb := payload.HeartBeat{ClientTimestamp: strconv.FormatInt(time.Now().UnixMilli(), 10)}
				if err := s.write(hb.Frame); err != nil {
					logger.WithFields(logrus.Fields{
						"bot_id": s.bot.SelfID(),
						"error":  err,
					}).Warn("failed-to-send-heartbeat")
				}
			}
		}
	}()
}

func (s *session) stopHeartbeat() {
	s.mu.Lock()
	cancel, done := s.hbCancel, s.hbDone
	s.hbCancel, s.hbDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// logout stops the heartbeat and sends a best-effort Logout.
func (s *session) logout() error {
	s.stopHeartbeat()

	s.mu.Lock()
	info := s.info
	s.mu.Unlock()
	if info == nil {
		return fmt.Errorf("not connected")
	}

	msg := payload.Logout{
		UID:      uint64(info.UID),
		Platform: info.Platform,
		AppID:    info.AppID,
		DeviceID: info.DeviceID,
		Region:   constants.DefaultLoginRegion,
	}
	logger.WithField("bot_id", s.bot.SelfID()).Info("sending-logout")
	return s.write(msg.Frame)
}

// teardown runs on every exit from a connection attempt that reached the
// dial stage. The socket is closed before the heartbeat is stopped: a
// heartbeat stuck in WriteFrame holds s.mu until the write fails.
func (s *session) teardown(conn Conn) {
	botID := s.bot.SelfID()
	s.m.setState(botID, StateDraining)

	conn.Close()
	s.stopHeartbeat()
	s.m.unregister(botID)

	s.mu.Lock()
	s.conn = nil
	s.seq = 0
	s.mu.Unlock()

	s.m.setState(botID, StateDisconnected)
}
