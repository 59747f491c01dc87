package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/keepmind9/villabot/internal/bot"
	"github.com/keepmind9/villabot/internal/event"
	"github.com/keepmind9/villabot/internal/logger"
	"github.com/keepmind9/villabot/pkg/constants"
	"github.com/sirupsen/logrus"
)

// Handler returns the HTTP handler serving every configured callback path.
func (m *Manager) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, p := range m.config.WebhookPaths() {
		mux.HandleFunc(p, m.handleCallback)
	}
	return mux
}

// handleCallback handles one event callback from the platform.
//
// This function:
// 1. Validates the request (POST method, non-empty JSON body with an event)
// 2. Resolves the bot from the event's robot template id
// 3. Verifies the x-rpc-bot_sign signature when the bot requires it
// 4. Registers the bot on its first verified event
// 5. Drops events already delivered
// 6. Dispatches the prepared event and acknowledges
//
// Events for unknown bots and events that cannot be classified are
// acknowledged so the platform does not keep redelivering them.
func (m *Manager) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		logger.WithField("error", err).Error("failed-to-read-callback-body")
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if len(bytes.TrimSpace(data)) == 0 {
		logger.Warn("empty-callback-body")
		http.Error(w, constants.InvalidBodyMessage, http.StatusUnsupportedMediaType)
		return
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		logger.WithFields(logrus.Fields{
			"body":  logger.Truncate(data),
			"error": err,
		}).Warn("callback-body-is-not-json")
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	raw, ok := envelope["event"]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		http.Error(w, constants.InvalidBodyMessage, http.StatusUnsupportedMediaType)
		return
	}

	var rec event.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		logger.WithFields(logrus.Fields{
			"body":  logger.Truncate(data),
			"error": err,
		}).Warn("failed-to-parse-callback-event")
		writeAck(w)
		return
	}

	botID := rec.Robot.Template.ID
	b, err := m.webhookBot(botID)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"bot_id": botID,
			"error":  err,
		}).Warn("callback-for-unknown-bot")
		writeAck(w)
		return
	}

	if b.Info().VerifyEvent {
		sign := r.Header.Get(constants.HeaderBotSign)
		if !b.VerifySignature(data, sign) {
			logger.WithFields(logrus.Fields{
				"bot_id": botID,
				"sign":   logger.TruncateString(sign, 32),
			}).Warn("invalid-callback-signature")
			http.Error(w, constants.InvalidSignatureMessage, http.StatusUnauthorized)
			return
		}
	}

	b = m.registerWebhookBot(b)
	b.SetProfile(rec.Robot)

	if m.seen(botID, rec.ID) {
		writeAck(w)
		return
	}

	ev, err := event.Classify(rec.Type, &rec)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"bot_id":   botID,
			"event_id": rec.ID,
			"type":     rec.Type,
			"body":     logger.Truncate(data),
			"error":    err,
		}).Warn("failed-to-classify-callback-event")
		writeAck(w)
		return
	}

	m.dispatch(b, event.Prepare(ev, botID))
	writeAck(w)
}

// webhookBot returns the registered bot for id, or a new unregistered one
// built from configuration.
func (m *Manager) webhookBot(botID string) (*bot.Bot, error) {
	if b, ok := m.Bot(botID); ok {
		return b, nil
	}

	bc, err := m.config.GetBotConfig(botID)
	if err != nil {
		return nil, err
	}
	if !bc.IsWebhook() {
		return nil, fmt.Errorf("bot %s is not configured for webhook delivery", botID)
	}
	return bot.New(bc.Info(), m.config.APIBaseURL, m.httpClient)
}

// registerWebhookBot marks b active unless a concurrent callback already
// registered the same bot, in which case that instance wins.
func (m *Manager) registerWebhookBot(b *bot.Bot) *bot.Bot {
	botID := b.SelfID()

	m.mu.Lock()
	if existing, ok := m.active[botID]; ok {
		m.mu.Unlock()
		return existing
	}
	m.active[botID] = b
	m.states[botID] = StateActive
	m.mu.Unlock()

	logger.WithField("bot_id", botID).Info("bot-connected")
	return b
}

func writeAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"retcode": 0,
		"message": constants.WebhookAckMessage,
	})
}
