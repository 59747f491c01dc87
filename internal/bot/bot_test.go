package bot

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keepmind9/villabot/internal/event"
	"github.com/keepmind9/villabot/internal/message"
	"github.com/keepmind9/villabot/internal/villaerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func sign(t *testing.T, key *rsa.PrivateKey, body []byte, secret string) string {
	t.Helper()
	digest := sha256.Sum256(signedPayload(body, secret))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Info{}, "", nil)
	assert.Error(t, err)

	_, err = New(Info{BotID: "bot_1", PubKey: "not a key"}, "", nil)
	assert.Error(t, err)

	b, err := New(Info{BotID: "bot_1", BotSecret: "s"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "bot_1", b.SelfID())
	assert.NotNil(t, b.API())
}

func TestDeriveSecret(t *testing.T) {
	// hex(HMAC-SHA256(key="key", msg="The quick brown fox jumps over the lazy dog"))
	assert.Equal(t,
		"f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		deriveSecret("key", "The quick brown fox jumps over the lazy dog"))
}

func TestBot_SecretAndLoginToken(t *testing.T) {
	_, pub := generateKey(t)
	b, err := New(Info{BotID: "bot_1", BotSecret: "raw", PubKey: pub, TestVillaID: 42}, "", nil)
	require.NoError(t, err)

	assert.Equal(t, deriveSecret(pub, "raw"), b.Secret())
	assert.NotEqual(t, "raw", b.Secret())
	assert.Equal(t, "42."+b.Secret()+".bot_1", b.LoginToken())
}

func TestNormalizePubKey_EscapedNewlines(t *testing.T) {
	_, pub := generateKey(t)
	escaped := strings.ReplaceAll(strings.TrimSpace(pub), "\n", `\n`)

	assert.Equal(t, pub, normalizePubKey(escaped))
	assert.Equal(t, pub, normalizePubKey("  "+pub+"\n\n"))
	assert.Equal(t, "", normalizePubKey("  "))
}

func TestBot_VerifySignature(t *testing.T) {
	key, pub := generateKey(t)
	b, err := New(Info{BotID: "bot_1", BotSecret: "raw-secret", PubKey: pub}, "", nil)
	require.NoError(t, err)

	body := []byte(`{"event":{"id":"e1"}}`)
	good := sign(t, key, body, "raw-secret")

	assert.True(t, b.VerifySignature(body, good))
	assert.True(t, b.VerifySignature(append(body, '\n'), good), "trailing newline is not signed")
	assert.False(t, b.VerifySignature([]byte(`{"event":{"id":"e2"}}`), good))
	assert.False(t, b.VerifySignature(body, sign(t, key, body, "other-secret")))
	assert.False(t, b.VerifySignature(body, ""))
	assert.False(t, b.VerifySignature(body, "%%%not-base64"))

	noKey, err := New(Info{BotID: "bot_2", BotSecret: "raw-secret"}, "", nil)
	require.NoError(t, err)
	assert.False(t, noKey.VerifySignature(body, good))
}

func TestBot_Profile(t *testing.T) {
	b, err := New(Info{BotID: "bot_1"}, "", nil)
	require.NoError(t, err)

	_, err = b.Profile()
	assert.ErrorIs(t, err, villaerr.ErrProfileNotYetAvailable)

	b.SetProfile(event.Robot{VillaID: 7, Template: event.Template{ID: "bot_1", Name: "Helper"}})
	p, err := b.Profile()
	require.NoError(t, err)
	assert.Equal(t, "Helper", p.Template.Name)
}

type sentRequest struct {
	VillaID    string
	RoomID     uint64 `json:"room_id"`
	ObjectName string `json:"object_name"`
	MsgContent string `json:"msg_content"`
}

func newSendServer(t *testing.T) (*httptest.Server, *sentRequest) {
	t.Helper()
	got := &sentRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, got))
		got.VillaID = r.Header.Get("x-rpc-bot_villa_id")
		_, _ = io.WriteString(w, `{"retcode":0,"message":"OK","data":{"bot_msg_id":"reply-1"}}`)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func incoming() *event.SendMessage {
	ev := &event.SendMessage{}
	ev.VillaID = 7
	ev.RoomID = 9
	ev.FromUserID = 1001
	ev.Nickname = "Alice"
	ev.MsgUID = "msg-1"
	ev.SendAt = 1690000000
	return ev
}

func TestBot_Send(t *testing.T) {
	srv, got := newSendServer(t)
	b, err := New(Info{BotID: "bot_1"}, srv.URL, srv.Client())
	require.NoError(t, err)

	id, err := b.Send(context.Background(), incoming(), message.FromText("pong"), SendOptions{
		MentionSender: true,
		ReplyMessage:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "reply-1", id)

	assert.Equal(t, "7", got.VillaID)
	assert.EqualValues(t, 9, got.RoomID)
	assert.Equal(t, "MHY:Text", got.ObjectName)

	ci, err := message.ParseContentInfo([]byte(got.MsgContent))
	require.NoError(t, err)
	require.NotNil(t, ci.Content.Text)
	assert.Equal(t, "@Alice pong", ci.Content.Text.Text)
	require.NotNil(t, ci.Quote)
	assert.Equal(t, "msg-1", ci.Quote.QuotedMessageID)
	require.NotNil(t, ci.MentionedInfo)
	assert.Equal(t, []string{"1001"}, ci.MentionedInfo.UserIDList)
}

func TestBot_Send_FillsOwnName(t *testing.T) {
	srv, got := newSendServer(t)
	b, err := New(Info{BotID: "bot_1"}, srv.URL, srv.Client())
	require.NoError(t, err)
	b.SetProfile(event.Robot{Template: event.Template{ID: "bot_1", Name: "Helper"}})

	msg := message.Message{message.MentionRobot{BotID: "bot_1"}, message.Text{Content: "here"}}
	_, err = b.Send(context.Background(), incoming(), msg, SendOptions{})
	require.NoError(t, err)

	ci, err := message.ParseContentInfo([]byte(got.MsgContent))
	require.NoError(t, err)
	assert.Equal(t, "@Helper here", ci.Content.Text.Text)
}

func TestBot_Send_RejectsNonMessageEvents(t *testing.T) {
	b, err := New(Info{BotID: "bot_1"}, "", nil)
	require.NoError(t, err)

	_, err = b.Send(context.Background(), &event.JoinVilla{}, message.FromText("hi"), SendOptions{})
	assert.Error(t, err)
}

func TestBot_Send_EmptyMessage(t *testing.T) {
	b, err := New(Info{BotID: "bot_1"}, "", nil)
	require.NoError(t, err)

	_, err = b.Send(context.Background(), incoming(), message.Message{}, SendOptions{})
	assert.ErrorIs(t, err, villaerr.ErrEmptyMessage)
}
