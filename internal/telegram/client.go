// Package telegram adapts the Bot API SDK to the calls the relay makes:
// file uploads, inline query answers and webhook registration.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/errors"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// Upload is a file sent to a chat to obtain a reusable file id.
type Upload struct {
	ChatID   int64
	Filename string
	Data     []byte
	Caption  string
}

type Client struct {
	api    *tgbotapi.BotAPI
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client for token. An empty apiURL selects
// DefaultAPIURL and a nil httpClient gets newHTTPClient. No request is made;
// use Ping to validate the token.
func NewClient(token, apiURL string, httpClient *http.Client) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = newHTTPClient()
	}
	// tgbotapi.NewBotAPIWithClient calls getMe eagerly, so the bot is
	// assembled by hand and each call binds its own context.
	api := &tgbotapi.BotAPI{Token: token, Client: httpClient, Buffer: 100}
	api.SetAPIEndpoint(strings.TrimRight(apiURL, "/") + "/bot%s/%s")
	return &Client{
		api:    api,
		http:   httpClient,
		logger: slog.Default().With("component", "telegram-client"),
	}
}

// newHTTPClient bounds connection setup only. A whole-request timeout would
// cut off large animation uploads; callers bound calls with their context.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   4,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// SendImage uploads a static image with sendPhoto and returns the file id of
// the largest stored size.
func (c *Client) SendImage(ctx context.Context, up Upload) (string, error) {
	cfg := tgbotapi.NewPhoto(up.ChatID, tgbotapi.FileBytes{Name: up.Filename, Bytes: up.Data})
	cfg.Caption = up.Caption
	cfg.DisableNotification = true

	msg, err := c.send(ctx, "sendPhoto", cfg)
	if err != nil {
		return "", err
	}
	if len(msg.Photo) == 0 {
		return "", apperrors.Newf(apperrors.ErrRemote, http.StatusOK, "sendPhoto: response carries no photo")
	}
	return msg.Photo[len(msg.Photo)-1].FileID, nil
}

// SendAnimation uploads an animation with sendAnimation and returns its file
// id.
func (c *Client) SendAnimation(ctx context.Context, up Upload) (string, error) {
	cfg := tgbotapi.NewAnimation(up.ChatID, tgbotapi.FileBytes{Name: up.Filename, Bytes: up.Data})
	cfg.Caption = up.Caption
	cfg.DisableNotification = true

	msg, err := c.send(ctx, "sendAnimation", cfg)
	if err != nil {
		return "", err
	}
	switch {
	case msg.Animation != nil:
		return msg.Animation.FileID, nil
	case msg.Document != nil:
		return msg.Document.FileID, nil
	default:
		return "", apperrors.Newf(apperrors.ErrRemote, http.StatusOK, "sendAnimation: response carries no animation")
	}
}

// AnswerInlineQuery replies to an inline query. tgbotapi.InlineConfig drops a
// zero cache_time, which Telegram reads as its 300 second default, so the
// parameters are built here and cache_time is always sent.
func (c *Client) AnswerInlineQuery(ctx context.Context, queryID string, results []InlineQueryResult, opts AnswerOptions) error {
	items := make([]any, 0, len(results))
	for _, r := range results {
		items = append(items, r.sdkResult())
	}
	params := tgbotapi.Params{
		"inline_query_id": queryID,
		"cache_time":      strconv.Itoa(opts.CacheTime),
		"is_personal":     strconv.FormatBool(opts.IsPersonal),
		"next_offset":     opts.NextOffset,
	}
	if err := params.AddInterface("results", items); err != nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, 0, "answerInlineQuery: encoding results: %v", err)
	}
	_, err := c.request(ctx, "answerInlineQuery", params)
	return err
}

// SetWebhook points the bot's update delivery at url. WebhookConfig has no
// secret_token field, so the parameters are built here.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if err := params.AddInterface("allowed_updates", []string{"inline_query"}); err != nil {
		return err
	}
	_, err := c.request(ctx, "setWebhook", params)
	return err
}

// Ping calls getMe, which succeeds whenever the token is valid and the Bot
// API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.request(ctx, "getMe", nil)
	return err
}

func (c *Client) send(ctx context.Context, method string, cfg tgbotapi.Chattable) (*tgbotapi.Message, error) {
	api, doer := c.bind(ctx)
	start := time.Now()
	msg, err := api.Send(cfg)
	c.logCall(method, doer.status, start, err)
	if err != nil {
		return nil, classify(method, doer.status, err)
	}
	return &msg, nil
}

func (c *Client) request(ctx context.Context, method string, params tgbotapi.Params) (json.RawMessage, error) {
	api, doer := c.bind(ctx)
	start := time.Now()
	resp, err := api.MakeRequest(method, params)
	c.logCall(method, doer.status, start, err)
	if err != nil {
		return nil, classify(method, doer.status, err)
	}
	return resp.Result, nil
}

// bind returns a shallow copy of the bot whose requests carry ctx. The SDK
// builds requests without a context, so the copy's HTTP client attaches it.
func (c *Client) bind(ctx context.Context) (*tgbotapi.BotAPI, *boundDoer) {
	doer := &boundDoer{ctx: ctx, client: c.http}
	api := *c.api
	api.Client = doer
	return &api, doer
}

func (c *Client) logCall(method string, status int, start time.Time, err error) {
	c.logger.Debug("bot api call",
		"method", method,
		"status", status,
		"ok", err == nil,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

// boundDoer implements tgbotapi.HTTPClient for a single call and records the
// HTTP status, which the SDK drops from upload errors.
type boundDoer struct {
	ctx    context.Context
	client *http.Client
	status int
}

func (d *boundDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req.WithContext(d.ctx))
	if err != nil {
		return nil, err
	}
	d.status = resp.StatusCode
	return resp, nil
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
