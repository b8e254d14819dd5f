// Package easyparcel is a client for the EasyParcel shipping API.
//
// A Client posts form-encoded requests to one of the regional endpoints and
// returns each response as a normalized Result. Transport problems are
// returned as errors; errors reported by the API itself are data on the
// Result so callers can branch without error handling.
package easyparcel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	productionURL = "https://connect.easyparcel.%s"
	sandboxURL    = "https://demo.connect.easyparcel.%s"

	defaultTimeout = 30 * time.Second
	dateLayout     = "2006-01-02"
	userAgent      = "tournevent-easyparcel/1.0"
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder receives per-call measurements.
type Recorder interface {
	RecordRequest(action, status string, duration float64)
	RecordError(action, errorCode string)
}

// Config holds client configuration.
type Config struct {
	APIKey  string
	Country string

	// BaseURL replaces the derived regional URL until the next UseSandbox
	// or UseProduction call.
	BaseURL string
	Sandbox bool
	Timeout time.Duration

	// HTTPClient defaults to an *http.Client with Timeout.
	HTTPClient Doer
	// Provider is consulted when APIKey or Country is empty.
	Provider ConfigProvider
	Metrics  Recorder
}

// Client is the EasyParcel API gateway.
type Client struct {
	apiKey  string
	country string

	mu      sync.RWMutex
	baseURL string

	httpClient Doer
	metrics    Recorder
	logger     *otelzap.Logger
	tracer     trace.Tracer

	now func() time.Time
}

// New creates a client. It fails with ErrConfiguration when no API key is
// given and none can be obtained from cfg.Provider. A nil logger or tracer
// disables logging or tracing.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) (*Client, error) {
	var settings Settings
	if cfg.Provider != nil && (cfg.APIKey == "" || cfg.Country == "") {
		s, err := cfg.Provider.Settings()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		settings = s
	}

	apiKey := firstNonEmpty(cfg.APIKey, settings.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required; set Config.APIKey or EASYPARCEL_API_KEY", ErrConfiguration)
	}
	country := strings.ToLower(firstNonEmpty(cfg.Country, settings.Country, DefaultCountry))

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("easyparcel")
	}

	c := &Client{
		apiKey:     apiKey,
		country:    country,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		logger:     logger,
		tracer:     tracer,
		now:        time.Now,
	}

	switch {
	case cfg.BaseURL != "":
		c.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.Sandbox || settings.Sandbox:
		c.baseURL = fmt.Sprintf(sandboxURL, country)
	default:
		c.baseURL = fmt.Sprintf(productionURL, country)
	}

	return c, nil
}

// UseSandbox points subsequent calls at the sandbox environment.
func (c *Client) UseSandbox() *Client {
	c.setBaseURL(fmt.Sprintf(sandboxURL, c.country))
	return c
}

// UseProduction points subsequent calls at the production environment.
func (c *Client) UseProduction() *Client {
	c.setBaseURL(fmt.Sprintf(productionURL, c.country))
	return c
}

// BaseURL returns the URL calls are currently sent to.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Country returns the lower-cased country code.
func (c *Client) Country() string {
	return c.country
}

func (c *Client) setBaseURL(u string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = u
}

// CheckBalance returns the account's credit balance.
func (c *Client) CheckBalance(ctx context.Context) (*Result, error) {
	return c.request(ctx, OpCheckBalance, nil)
}

// GetRates quotes a single shipment.
func (c *Client) GetRates(ctx context.Context, shipment Payload) (*Result, error) {
	return c.request(ctx, OpGetRates, map[string]any{"bulk": []Payload{shipment}})
}

// GetBulkRates quotes several shipments in one call.
func (c *Client) GetBulkRates(ctx context.Context, shipments []Payload) (*Result, error) {
	return c.request(ctx, OpGetRates, map[string]any{"bulk": shipments})
}

// SubmitOrder submits a single order.
func (c *Client) SubmitOrder(ctx context.Context, order Payload) (*Result, error) {
	return c.request(ctx, OpSubmitOrder, map[string]any{"bulk": []Payload{order}})
}

// SubmitBulkOrders submits several orders in one call.
func (c *Client) SubmitBulkOrders(ctx context.Context, orders []Payload) (*Result, error) {
	return c.request(ctx, OpSubmitOrder, map[string]any{"bulk": orders})
}

// PayOrder pays for a submitted order.
func (c *Client) PayOrder(ctx context.Context, orderNo string) (*Result, error) {
	return c.PayBulkOrders(ctx, []string{orderNo})
}

// PayBulkOrders pays for several submitted orders in one call.
func (c *Client) PayBulkOrders(ctx context.Context, orderNos []string) (*Result, error) {
	bulk := make([]Payload, len(orderNos))
	for i, no := range orderNos {
		bulk[i] = Payload{"order_no": no}
	}
	return c.request(ctx, OpPayOrder, map[string]any{"bulk": bulk})
}

// GetParcelCategoryList lists parcel categories.
func (c *Client) GetParcelCategoryList(ctx context.Context) (*Result, error) {
	return c.request(ctx, OpGetParcelCategory, nil)
}

// GetCourierList lists couriers available to the account.
func (c *Client) GetCourierList(ctx context.Context) (*Result, error) {
	return c.request(ctx, OpGetCourierList, nil)
}

// GetCourierDropoff lists a courier's drop-off points near a postcode.
func (c *Client) GetCourierDropoff(ctx context.Context, courierCode, postcode string) (*Result, error) {
	return c.request(ctx, OpGetCourierDropoff, map[string]any{
		"courier_id": courierCode,
		"postcode":   postcode,
	})
}

// Call invokes a registered operation by name. It fails with
// ErrInvalidOperation when the name has no endpoint.
func (c *Client) Call(ctx context.Context, operation string, params Payload) (*Result, error) {
	return c.request(ctx, operation, params)
}

// CallAction posts params to a raw ac action code without consulting the
// endpoint table.
func (c *Client) CallAction(ctx context.Context, action string, params Payload) (*Result, error) {
	return c.post(ctx, action, params)
}

func (c *Client) request(ctx context.Context, operation string, params map[string]any) (*Result, error) {
	action, err := ActionCode(operation)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, action, params)
}

// post performs the single HTTP exchange for an action and normalizes the body.
func (c *Client) post(ctx context.Context, action string, params map[string]any) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "easyparcel."+action,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("easyparcel.action", action),
			attribute.String("easyparcel.country", c.country),
		),
	)
	defer span.End()

	start := c.now()
	raw, err := c.doRequest(ctx, action, params)
	elapsed := c.now().Sub(start).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.record(action, "transport_error", elapsed)
		c.logger.Ctx(ctx).Error("EasyParcel request failed",
			zap.String("action", action),
			zap.Error(err),
		)
		return nil, err
	}

	res := Normalize(raw)
	span.SetAttributes(
		attribute.Bool("easyparcel.success", res.Success),
		attribute.String("easyparcel.shape", string(res.Shape)),
	)

	status := string(res.Outcome())
	c.record(action, status, elapsed)
	if res.Error != nil {
		if c.metrics != nil {
			c.metrics.RecordError(action, res.Error.Code)
		}
		c.logger.Ctx(ctx).Warn("EasyParcel returned an error",
			zap.String("action", action),
			zap.String("error_code", res.Error.Code),
			zap.String("error_remark", res.Error.Message),
		)
	} else {
		c.logger.Ctx(ctx).Debug("EasyParcel request completed",
			zap.String("action", action),
			zap.String("outcome", status),
			zap.Float64("duration_seconds", elapsed),
		)
	}
	return res, nil
}

func (c *Client) doRequest(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
	endpoint, err := url.Parse(c.BaseURL())
	if err != nil {
		return nil, &RequestError{Action: action, Cause: err}
	}
	q := endpoint.Query()
	q.Set("ac", action)
	endpoint.RawQuery = q.Encode()

	form := encodeForm(params)
	form.Set("api", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &RequestError{Action: action, Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Action: action, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Action: action, Cause: fmt.Errorf("failed to read response body: %w", err)}
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &RequestError{Action: action, Cause: fmt.Errorf("invalid JSON response: %w", err)}
	}
	if raw == nil {
		return nil, &RequestError{Action: action, Cause: fmt.Errorf("invalid JSON response: empty body (HTTP %d)", resp.StatusCode)}
	}
	return raw, nil
}

func (c *Client) record(action, status string, elapsed float64) {
	if c.metrics != nil {
		c.metrics.RecordRequest(action, status, elapsed)
	}
}

// PrepareShipment validates a rate-check payload and fills defaults: both
// countries default to the client's country and missing dimensions to 0.
func (c *Client) PrepareShipment(params Payload) (Payload, error) {
	if err := requireFields(params, "pick_code", "send_code", "weight"); err != nil {
		return nil, err
	}
	return withDefaults(params, Payload{
		"pick_country": c.country,
		"send_country": c.country,
		"width":        0,
		"height":       0,
		"length":       0,
	}), nil
}

// PrepareOrder validates an order payload and fills defaults, including a
// collection date of today.
func (c *Client) PrepareOrder(params Payload) (Payload, error) {
	err := requireFields(params,
		"pick_name", "pick_contact", "pick_addr1", "pick_city", "pick_code", "pick_state", "pick_country",
		"send_name", "send_contact", "send_addr1", "send_city", "send_code", "send_state", "send_country",
		"weight", "service_id", "content",
	)
	if err != nil {
		return nil, err
	}
	return withDefaults(params, Payload{
		"pick_country":                    c.country,
		"send_country":                    c.country,
		"width":                           0,
		"height":                          0,
		"length":                          0,
		"collect_date":                    c.now().Format(dateLayout),
		"sms":                             0,
		"addon_whatsapp_tracking_enabled": 0,
	}), nil
}

func requireFields(params Payload, fields ...string) error {
	for _, f := range fields {
		if v, ok := params[f]; !ok || v == nil {
			return missingField(f)
		}
	}
	return nil
}

func withDefaults(params, defaults Payload) Payload {
	out := make(Payload, len(params)+len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range params {
		out[k] = v
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
