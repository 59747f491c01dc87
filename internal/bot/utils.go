package bot

import (
	"bytes"
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"net/url"
	"strings"
)

// normalizePubKey undoes the escaping some deployments apply when the PEM
// block is passed through a single-line environment variable.
func normalizePubKey(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, `\n`, "\n"))
	if s == "" {
		return ""
	}
	return s + "\n"
}

func parsePubKey(s string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, fmt.Errorf("pub_key is not a PEM block")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pub_key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("pub_key is %T, want RSA", key)
	}
	return rsaKey, nil
}

// deriveSecret returns hex(HMAC-SHA256(key=pubKey, msg=secret)).
func deriveSecret(pubKey, secret string) string {
	mac := hmac.New(sha256.New, []byte(pubKey))
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedPayload is the string the platform signs for a webhook callback.
func signedPayload(body []byte, secret string) []byte {
	v := url.Values{}
	v.Set("body", string(bytes.TrimRight(body, "\n")))
	v.Set("secret", secret)
	return []byte(v.Encode())
}

// VerifySignature checks the x-rpc-bot_sign header of a webhook callback.
func (b *Bot) VerifySignature(body []byte, sign string) bool {
	if b.pubKey == nil || sign == "" {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(sign)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(signedPayload(body, b.info.BotSecret))
	return rsa.VerifyPKCS1v15(b.pubKey, crypto.SHA256, digest[:], sig) == nil
}
