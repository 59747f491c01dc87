package core

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/keepmind9/villabot/internal/bot"
	"github.com/keepmind9/villabot/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hookBotID  = "bot_hook"
	hookSecret = "raw-secret"
	hookPath   = "/villa/callback"
)

func generateKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func signBody(t *testing.T, key *rsa.PrivateKey, body string) string {
	t.Helper()
	v := url.Values{}
	v.Set("body", strings.TrimRight(body, "\n"))
	v.Set("secret", hookSecret)
	digest := sha256.Sum256([]byte(v.Encode()))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

type hookFixture struct {
	manager *Manager
	handler http.Handler
	key     *rsa.PrivateKey
	events  chan event.Event
}

func newHookFixture(t *testing.T, verify bool) *hookFixture {
	t.Helper()
	key, pub := generateKey(t)

	config := &Config{Bots: []BotConfig{{
		BotID:       hookBotID,
		BotSecret:   hookSecret,
		PubKey:      pub,
		CallbackURL: "http://127.0.0.1:8080" + hookPath,
		VerifyEvent: &verify,
	}}}
	require.NoError(t, validateConfig(config))

	events := make(chan event.Event, 8)
	m := NewManager(config, func(_ context.Context, _ *bot.Bot, ev event.Event) {
		events <- ev
	})
	t.Cleanup(func() { m.Stop() })

	return &hookFixture{manager: m, handler: m.Handler(), key: key, events: events}
}

func (f *hookFixture) post(body, sign string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, hookPath, strings.NewReader(body))
	if sign != "" {
		req.Header.Set("x-rpc-bot_sign", sign)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func sendMessageBody(eventID, text string) string {
	content := `{\"content\":{\"text\":\"` + text + `\",\"entities\":[]}}`
	return `{"event":{"robot":{"template":{"id":"` + hookBotID + `","name":"Helper"},"villa_id":100},` +
		`"type":2,"extend_data":{"EventData":{"SendMessage":{"content":"` + content + `",` +
		`"from_user_id":1001,"send_at":1700000000,"object_name":1,"room_id":5,"nickname":"Alice",` +
		`"msg_uid":"m-1","villa_id":100}}},"created_at":1700000000,"id":"` + eventID + `","send_at":1700000001}}`
}

func receive(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHandleCallback_RequestValidation(t *testing.T) {
	f := newHookFixture(t, true)

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"GET not allowed", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"empty body", http.MethodPost, "", http.StatusUnsupportedMediaType},
		{"whitespace body", http.MethodPost, "  \n", http.StatusUnsupportedMediaType},
		{"not JSON", http.MethodPost, "hello", http.StatusBadRequest},
		{"no event key", http.MethodPost, `{"foo":1}`, http.StatusUnsupportedMediaType},
		{"null event", http.MethodPost, `{"event":null}`, http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, hookPath, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestHandleCallback_Signature(t *testing.T) {
	f := newHookFixture(t, true)
	body := sendMessageBody("ev-1", "hello")
	good := signBody(t, f.key, body)

	t.Run("missing signature", func(t *testing.T) {
		rec := f.post(body, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid Signature")
	})

	t.Run("tampered body", func(t *testing.T) {
		rec := f.post(sendMessageBody("ev-1", "hacked"), good)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid signature", func(t *testing.T) {
		rec := f.post(body, good)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"retcode":0,"message":"OK"}`, rec.Body.String())

		ev := receive(t, f.events)
		sm, ok := ev.(*event.SendMessage)
		require.True(t, ok)
		assert.Equal(t, "hello", sm.Message.PlainText())
		assert.Equal(t, "100-5-1001", sm.SessionID())
	})

	assert.Empty(t, f.events)
}

func TestHandleCallback_RejectedSignatureDoesNotRegisterBot(t *testing.T) {
	f := newHookFixture(t, true)

	rec := f.post(sendMessageBody("ev-x", "forged"), "Zm9yZ2Vk")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	_, ok := f.manager.Bot(hookBotID)
	assert.False(t, ok)
	assert.Equal(t, StateDisconnected, f.manager.State(hookBotID))
	assert.Empty(t, f.manager.Bots())

	body := sendMessageBody("ev-y", "genuine")
	rec = f.post(body, signBody(t, f.key, body))
	require.Equal(t, http.StatusOK, rec.Code)
	receive(t, f.events)

	_, ok = f.manager.Bot(hookBotID)
	assert.True(t, ok)
	assert.Equal(t, StateActive, f.manager.State(hookBotID))
}

func TestHandleCallback_UnreadableBody(t *testing.T) {
	f := newHookFixture(t, true)

	req := httptest.NewRequest(http.MethodPost, hookPath, iotest.ErrReader(errors.New("connection reset")))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.manager.Bots())
}

func TestHandleCallback_RegistersBotAndProfile(t *testing.T) {
	f := newHookFixture(t, false)

	assert.Equal(t, StateDisconnected, f.manager.State(hookBotID))

	rec := f.post(sendMessageBody("ev-1", "hi"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	receive(t, f.events)

	b, ok := f.manager.Bot(hookBotID)
	require.True(t, ok)
	assert.Equal(t, StateActive, f.manager.State(hookBotID))

	p, err := b.Profile()
	require.NoError(t, err)
	assert.Equal(t, "Helper", p.Template.Name)
	assert.Len(t, f.manager.Bots(), 1)
}

func TestHandleCallback_DropsDuplicates(t *testing.T) {
	f := newHookFixture(t, false)

	require.Equal(t, http.StatusOK, f.post(sendMessageBody("ev-1", "one"), "").Code)
	require.Equal(t, http.StatusOK, f.post(sendMessageBody("ev-1", "one"), "").Code)
	require.Equal(t, http.StatusOK, f.post(sendMessageBody("ev-2", "two"), "").Code)

	first := receive(t, f.events).(*event.SendMessage)
	second := receive(t, f.events).(*event.SendMessage)
	texts := []string{first.Message.PlainText(), second.Message.PlainText()}
	assert.ElementsMatch(t, []string{"one", "two"}, texts)

	select {
	case ev := <-f.events:
		t.Fatalf("unexpected duplicate delivery: %v", ev.Header().EventID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleCallback_AcknowledgesWhatItCannotHandle(t *testing.T) {
	f := newHookFixture(t, false)

	unknownBot := strings.Replace(sendMessageBody("ev-1", "x"), hookBotID, "bot_other", 1)
	rec := f.post(unknownBot, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	missingPayload := `{"event":{"robot":{"template":{"id":"` + hookBotID + `"}},"type":2,"extend_data":{},"id":"ev-9"}}`
	rec = f.post(missingPayload, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case ev := <-f.events:
		t.Fatalf("unexpected dispatch: %s", ev.Name())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatch_RecoversHandlerPanic(t *testing.T) {
	verify := false
	_, pub := generateKey(t)
	config := &Config{Bots: []BotConfig{{
		BotID: hookBotID, BotSecret: hookSecret, PubKey: pub,
		CallbackURL: "http://127.0.0.1" + hookPath, VerifyEvent: &verify,
	}}}
	require.NoError(t, validateConfig(config))

	calls := make(chan struct{}, 2)
	m := NewManager(config, func(_ context.Context, _ *bot.Bot, _ event.Event) {
		calls <- struct{}{}
		panic("handler bug")
	})
	defer m.Stop()

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodPost, hookPath, strings.NewReader(sendMessageBody(id, "x")))
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("handler was not called")
		}
	}
}
