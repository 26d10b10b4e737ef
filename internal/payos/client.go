// Package payos is a client for the hosted payment link API: payment request
// creation and cancellation, plus webhook decoding and checksum verification.
package payos

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/thangnvgch211384/fshoemate/internal/domain/payment"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api-merchant.payos.vn"

// descriptionLimit is the longest transfer description the API accepts.
const descriptionLimit = 25

// Config holds merchant credentials.
type Config struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	Timeout     time.Duration
}

// Client implements payment.Gateway and payment.Verifier.
type Client struct {
	cfg     Config
	http    *http.Client
	newCode func() int64
}

var (
	_ payment.Gateway  = (*Client)(nil)
	_ payment.Verifier = (*Client)(nil)
)

// Option configures Client.
type Option func(c *Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTracerProvider sets the tracer provider used for outgoing requests.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.http.Transport = otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tp))
	}
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.ClientID == "" || cfg.APIKey == "" || cfg.ChecksumKey == "" {
		return nil, errors.New("payos: client id, api key and checksum key are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		newCode: correlationCode,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// correlationCode derives a numeric payment code from the clock. The API
// requires a positive integer below 2^53, unique per merchant.
func correlationCode() int64 {
	return time.Now().UnixMilli()%1_000_000_000_000*1000 + rand.Int64N(1000)
}

// CreateSession opens a payment link for the order.
func (c *Client) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	code := c.newCode()
	desc := description(req.OrderID)

	sig := c.sign(map[string]string{
		"amount":      strconv.FormatInt(req.Amount, 10),
		"cancelUrl":   req.CancelURL,
		"description": desc,
		"orderCode":   strconv.FormatInt(code, 10),
		"returnUrl":   req.ReturnURL,
	})
	body := encodeCreateRequest(createRequest{
		OrderCode:   code,
		Amount:      req.Amount,
		Description: desc,
		Items:       req.Items,
		Buyer:       req.Buyer,
		CancelURL:   req.CancelURL,
		ReturnURL:   req.ReturnURL,
		Signature:   sig,
	})

	data, err := c.do(ctx, http.MethodPost, "/v2/payment-requests", body)
	if err != nil {
		return nil, errors.Wrap(err, "create payment request")
	}
	link, err := decodePaymentLink(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode payment link")
	}
	if link.OrderCode == 0 {
		link.OrderCode = code
	}

	zctx.From(ctx).Debug("Payment link created",
		zap.String("order_id", req.OrderID),
		zap.Int64("payment_code", link.OrderCode),
		zap.String("payment_link_id", link.PaymentLinkID),
	)
	return &payment.Session{CheckoutURL: link.CheckoutURL, Code: link.OrderCode}, nil
}

// CancelSession cancels an open payment link.
func (c *Client) CancelSession(ctx context.Context, code int64, reason string) error {
	path := "/v2/payment-requests/" + strconv.FormatInt(code, 10) + "/cancel"
	if _, err := c.do(ctx, http.MethodPost, path, encodeCancelRequest(reason)); err != nil {
		return errors.Wrapf(err, "cancel payment request %d", code)
	}
	return nil
}

// VerifyCallback checks the webhook checksum over the received data fields.
func (c *Client) VerifyCallback(cb payment.Callback) bool {
	if cb.Signature == "" || len(cb.Fields) == 0 {
		return false
	}
	want := c.sign(cb.Fields)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(cb.Signature)))
}

// DecodeCallback parses a webhook body.
func (c *Client) DecodeCallback(body []byte) (payment.Callback, error) {
	return DecodeWebhook(body)
}

// sign computes the checksum over fields sorted by key and joined as
// key=value pairs with '&'.
func (c *Client) sign(fields map[string]string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.ChecksumKey))
	mac.Write([]byte(canonical(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", c.cfg.ClientID)
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if resp.StatusCode >= 500 {
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode response (status %d)", resp.StatusCode)
	}
	if env.Code != payment.SuccessCode {
		return nil, &payment.ChannelError{Code: env.Code, Description: env.Desc}
	}
	return env.Data, nil
}

func description(orderID string) string {
	id := strings.ReplaceAll(orderID, "-", "")
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	d := "FSHOE " + strings.ToUpper(id)
	if len(d) > descriptionLimit {
		d = d[:descriptionLimit]
	}
	return d
}
