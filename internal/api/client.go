// Package api is a thin client for the Villa bot REST surface.
//
// Every call is POSTed or GETed to <base>/vila/api/bot/platform/<op> with the
// bot credential headers and answers with a {retcode, message, data}
// envelope. Non-zero retcodes surface as *villaerr.ProtocolError, anything
// that prevents reading the envelope as *villaerr.NetworkError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/keepmind9/villabot/internal/logger"
	"github.com/keepmind9/villabot/internal/villaerr"
	"github.com/keepmind9/villabot/pkg/constants"
	"github.com/sirupsen/logrus"
)

// Credentials identify the bot on every request. Secret is the derived
// secret, not the raw one from the developer console.
type Credentials struct {
	BotID  string
	Secret string
}

// Client issues REST calls on behalf of one bot.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
}

// NewClient creates a client. An empty baseURL selects the public endpoint
// and a nil httpClient a client with the default API timeout.
func NewClient(baseURL string, creds Credentials, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = constants.DefaultAPIBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.DefaultAPITimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: httpClient,
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// envelope is the response wrapper. Older endpoints use "msg" instead of
// "message".
type envelope struct {
	Retcode int             `json:"retcode"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Msg
}

func (c *Client) newRequest(ctx context.Context, method, op string, villaID uint64, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+constants.APIPathPrefix+op, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set(constants.HeaderBotID, c.creds.BotID)
	req.Header.Set(constants.HeaderBotSecret, c.creds.Secret)
	if villaID != 0 {
		req.Header.Set(constants.HeaderBotVillaID, strconv.FormatUint(villaID, 10))
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do performs one API call. body is JSON encoded even for GET requests, as
// the platform reads query parameters from the body. When out is non-nil the
// envelope's data field is decoded into it.
func (c *Client) Do(ctx context.Context, method, op string, villaID uint64, body, out any) error {
	req, err := c.newRequest(ctx, method, op, villaID, body)
	if err != nil {
		return &villaerr.NetworkError{Op: op, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &villaerr.NetworkError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &villaerr.NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	logger.WithFields(logrus.Fields{
		"bot_id":   c.creds.BotID,
		"op":       op,
		"status":   resp.StatusCode,
		"response": logger.Truncate(raw),
	}).Trace("api-response")

	// The platform answers 200 for most rejections, so the status code is
	// only used when there is no envelope to read.
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &villaerr.NetworkError{Op: op, Err: fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)}
	}
	if env.Retcode != 0 {
		return villaerr.NewProtocolError(op, env.Retcode, env.text())
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &villaerr.NetworkError{Op: op, Err: fmt.Errorf("decode data: %w", err)}
		}
	}
	return nil
}
