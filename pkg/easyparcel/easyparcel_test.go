package easyparcel_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/easyparcel/pkg/easyparcel"
	"github.com/tournevent/easyparcel/pkg/easyparcel/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, transport *mock.Transport) *easyparcel.Client {
	t.Helper()
	client, err := easyparcel.New(easyparcel.Config{
		APIKey:     "test-key",
		HTTPClient: transport,
	}, otelzap.New(zap.NewNop()), nil)
	require.NoError(t, err)
	return client
}

type recorder struct {
	mu       sync.Mutex
	requests []string
	errors   []string
}

func (r *recorder) RecordRequest(action, status string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, action+":"+status)
}

func (r *recorder) RecordError(action, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, action+":"+code)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := easyparcel.New(easyparcel.Config{}, nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, easyparcel.ErrConfiguration)
	assert.Contains(t, err.Error(), "EASYPARCEL_API_KEY")
}

func TestNew_ProviderWithoutKey(t *testing.T) {
	_, err := easyparcel.New(easyparcel.Config{
		Provider: easyparcel.StaticProvider{Country: "sg"},
	}, nil, nil)

	assert.ErrorIs(t, err, easyparcel.ErrConfiguration)
}

func TestNew_ProviderFallback(t *testing.T) {
	client, err := easyparcel.New(easyparcel.Config{
		Provider: easyparcel.StaticProvider{APIKey: "from-provider", Country: "SG", Sandbox: true},
	}, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "sg", client.Country())
	assert.Equal(t, "https://demo.connect.easyparcel.sg", client.BaseURL())
}

func TestNew_ExplicitValuesWin(t *testing.T) {
	transport := mock.NewTransport()
	client, err := easyparcel.New(easyparcel.Config{
		APIKey:     "explicit",
		Country:    "MY",
		HTTPClient: transport,
		Provider:   easyparcel.StaticProvider{APIKey: "from-provider", Country: "sg"},
	}, nil, nil)
	require.NoError(t, err)

	_, err = client.CheckBalance(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "my", client.Country())
	assert.Equal(t, "explicit", transport.LastRequest().Form.Get("api"))
}

func TestNew_EnvProviderWithoutKey(t *testing.T) {
	t.Setenv("EASYPARCEL_API_KEY", "")
	t.Setenv("EASYPARCEL_COUNTRY", "")
	_, err := easyparcel.New(easyparcel.Config{Provider: easyparcel.EnvProvider{}}, nil, nil)

	assert.ErrorIs(t, err, easyparcel.ErrConfiguration)
}

func TestNew_DefaultsToProductionMalaysia(t *testing.T) {
	client, err := easyparcel.New(easyparcel.Config{APIKey: "k"}, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "my", client.Country())
	assert.Equal(t, "https://connect.easyparcel.my", client.BaseURL())
}

func TestClient_EnvironmentSwitching(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)
	ctx := context.Background()

	client.UseSandbox()
	_, err := client.CheckBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo.connect.easyparcel.my", transport.LastRequest().URL.Host)

	client.UseProduction()
	_, err = client.CheckBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "connect.easyparcel.my", transport.LastRequest().URL.Host)
}

func TestClient_CustomBaseURL(t *testing.T) {
	transport := mock.NewTransport()
	client, err := easyparcel.New(easyparcel.Config{
		APIKey:     "k",
		BaseURL:    "http://localhost:9000/",
		HTTPClient: transport,
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", client.BaseURL())

	_, err = client.CheckBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", transport.LastRequest().URL.Host)

	client.UseSandbox()
	assert.Equal(t, "https://demo.connect.easyparcel.my", client.BaseURL())
}

func TestClient_CheckBalance(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)

	res, err := client.CheckBalance(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, map[string]any{"credit_balance": "100.50", "currency": "MYR"}, res.Data)

	seen := transport.LastRequest()
	assert.Equal(t, "EPCheckCreditBalance", seen.Action)
	assert.Equal(t, "test-key", seen.Form.Get("api"))
	assert.Len(t, seen.Form, 1)
}

func TestClient_GetRates(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)

	shipment := easyparcel.NewShipment().
		From(sender).
		To(receiver).
		WithDimensions(1.5, 10, 10, 10).
		Build()

	res, err := client.GetRates(context.Background(), shipment)
	require.NoError(t, err)
	assert.Equal(t, easyparcel.ShapeList, res.Shape)

	rates := res.Response().Rates()
	require.Len(t, rates, 2)
	assert.Equal(t, "EP-CS0I", rates[0]["service_id"])

	form := transport.LastRequest().Form
	assert.Equal(t, "EPRateCheckingBulk", transport.LastRequest().Action)
	assert.Equal(t, "50000", form.Get("bulk[0][pick_code]"))
	assert.Equal(t, "11950", form.Get("bulk[0][send_code]"))
	assert.Equal(t, "my", form.Get("bulk[0][pick_country]"))
	assert.Equal(t, "1.5", form.Get("bulk[0][weight]"))
	assert.Equal(t, "10", form.Get("bulk[0][width]"))
	assert.False(t, form.Has("bulk[1][pick_code]"))
}

func TestClient_GetBulkRates(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)

	shipments := []easyparcel.Payload{
		{"pick_code": "50000", "send_code": "11950", "weight": 1},
		{"pick_code": "10000", "send_code": "80000", "weight": 2},
	}

	res, err := client.GetBulkRates(context.Background(), shipments)
	require.NoError(t, err)

	list, ok := res.Data.([]any)
	require.True(t, ok)
	assert.Len(t, list, 2)

	form := transport.LastRequest().Form
	assert.Equal(t, "10000", form.Get("bulk[1][pick_code]"))
	assert.Equal(t, "2", form.Get("bulk[1][weight]"))
}

func TestClient_SubmitOrder(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)

	order := easyparcel.NewShipment().
		From(sender).
		To(receiver).
		WithWeight(1).
		WithContent("Books", 50).
		WithServiceID("EP-CS0I").
		WithCollectionDate("2025-03-22").
		Build()

	res, err := client.SubmitOrder(context.Background(), order)
	require.NoError(t, err)

	r := res.Response()
	assert.True(t, strings.HasPrefix(r.OrderNumber(), "EI-"))
	assert.Equal(t, "pending", r.ParcelStatus())
	require.NotNil(t, r.ShipmentCost())
	assert.InDelta(t, 6.50, *r.ShipmentCost(), 1e-9)

	form := transport.LastRequest().Form
	assert.Equal(t, "EPSubmitOrderBulk", transport.LastRequest().Action)
	assert.Equal(t, "EP-CS0I", form.Get("bulk[0][service_id]"))
	assert.Equal(t, "2025-03-22", form.Get("bulk[0][collect_date]"))
	assert.Equal(t, "Books", form.Get("bulk[0][content]"))
}

func TestClient_SubmitBulkOrders(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)

	res, err := client.SubmitBulkOrders(context.Background(), []easyparcel.Payload{
		{"service_id": "EP-A"},
		{"service_id": "EP-B"},
		{"service_id": "EP-C"},
	})
	require.NoError(t, err)

	list, ok := res.Data.([]any)
	require.True(t, ok)
	assert.Len(t, list, 3)
}

func TestClient_PayOrder(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)

	res, err := client.PayOrder(context.Background(), "EI-12345")
	require.NoError(t, err)
	assert.True(t, res.Success)

	seen := transport.LastRequest()
	assert.Equal(t, "EPPayOrderBulk", seen.Action)
	assert.Equal(t, "EI-12345", seen.Form.Get("bulk[0][order_no]"))
	assert.Equal(t, "EI-12345", res.Response().OrderDetails()["orderno"])
}

func TestClient_PayBulkOrders(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)

	_, err := client.PayBulkOrders(context.Background(), []string{"EI-1", "EI-2"})
	require.NoError(t, err)

	form := transport.LastRequest().Form
	assert.Equal(t, "EI-1", form.Get("bulk[0][order_no]"))
	assert.Equal(t, "EI-2", form.Get("bulk[1][order_no]"))
}

func TestClient_Lookups(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)
	ctx := context.Background()

	categories, err := client.GetParcelCategoryList(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EPGetParcelCategory", transport.LastRequest().Action)
	assert.Equal(t, easyparcel.ShapeList, categories.Shape)

	couriers, err := client.GetCourierList(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EPCourierList", transport.LastRequest().Action)
	assert.Equal(t, easyparcel.ShapeList, couriers.Shape)

	dropoff, err := client.GetCourierDropoff(ctx, "poslaju", "50000")
	require.NoError(t, err)
	seen := transport.LastRequest()
	assert.Equal(t, "EPCourierDropoff", seen.Action)
	assert.Equal(t, "poslaju", seen.Form.Get("courier_id"))
	assert.Equal(t, "50000", seen.Form.Get("postcode"))
	assert.Equal(t, "DP-poslaju-01", dropoff.Response().OrderDetails()["point_id"])
}

func TestClient_Call(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)

	res, err := client.Call(context.Background(), easyparcel.OpCheckBalance, nil)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "EPCheckCreditBalance", transport.LastRequest().Action)
}

func TestClient_CallUnknownOperation(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)

	res, err := client.Call(context.Background(), "trackParcel", nil)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, easyparcel.ErrInvalidOperation)
	assert.Empty(t, transport.Requests())
}

func TestClient_CallAction(t *testing.T) {
	transport := mock.NewTransport()
	transport.SetResponse("EPTrackingBulk", map[string]any{
		"error_code": "0",
		"result":     []any{map[string]any{"tracking_number": "EP123"}},
	})
	client := newTestClient(t, transport)

	res, err := client.CallAction(context.Background(), "EPTrackingBulk", easyparcel.Payload{
		"bulk": []any{map[string]any{"awb_no": "EP123"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "EP123", res.Response().TrackingNumber())
	assert.Equal(t, "EP123", transport.LastRequest().Form.Get("bulk[0][awb_no]"))
}

func TestClient_RemoteErrorIsData(t *testing.T) {
	transport := mock.NewTransport()
	transport.SetResponse("EPCheckCreditBalance", `{"error_code":"1001","error_remark":"Invalid API key"}`)
	metrics := &recorder{}
	client, err := easyparcel.New(easyparcel.Config{
		APIKey:     "bad",
		HTTPClient: transport,
		Metrics:    metrics,
	}, nil, nil)
	require.NoError(t, err)

	res, err := client.CheckBalance(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "1001", res.Error.Code)
	assert.Equal(t, []string{"EPCheckCreditBalance:failure"}, metrics.requests)
	assert.Equal(t, []string{"EPCheckCreditBalance:1001"}, metrics.errors)
}

func TestClient_TransportError(t *testing.T) {
	transport := mock.NewTransport()
	transport.SimulateErrors = true
	metrics := &recorder{}
	client, err := easyparcel.New(easyparcel.Config{
		APIKey:     "k",
		HTTPClient: transport,
		Metrics:    metrics,
	}, nil, nil)
	require.NoError(t, err)

	res, err := client.CheckBalance(context.Background())

	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, easyparcel.ErrRequestFailed)
	assert.ErrorIs(t, err, mock.ErrSimulated)

	var reqErr *easyparcel.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "EPCheckCreditBalance", reqErr.Action)
	assert.Equal(t, []string{"EPCheckCreditBalance:transport_error"}, metrics.requests)
	assert.Empty(t, metrics.errors)
}

func TestClient_InvalidJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"html", "<html>Bad Gateway</html>"},
		{"empty", ""},
		{"null", "null"},
		{"array", `[{"error_code":"0"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := mock.NewTransport()
			transport.SetResponse("EPCourierList", tt.body)
			client := newTestClient(t, transport)

			res, err := client.GetCourierList(context.Background())

			assert.Nil(t, res)
			assert.ErrorIs(t, err, easyparcel.ErrRequestFailed)
		})
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	transport := mock.NewTransport()
	transport.SimulateLatency = time.Second
	client := newTestClient(t, transport)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.CheckBalance(ctx)

	assert.ErrorIs(t, err, easyparcel.ErrRequestFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_HTTPServer(t *testing.T) {
	var got *http.Request
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		got = r
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"api_status":"Success","error_code":"0","error_remark":"","result":{"credit_balance":"42.00"}}`))
	}))
	defer srv.Close()

	client, err := easyparcel.New(easyparcel.Config{APIKey: "live-key", BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)

	res, err := client.CheckBalance(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"credit_balance": "42.00"}, res.Data)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "EPCheckCreditBalance", got.URL.Query().Get("ac"))
	assert.Equal(t, "application/x-www-form-urlencoded", got.Header.Get("Content-Type"))
	assert.Equal(t, []string{"live-key"}, form["api"])
}

func TestClient_NonSuccessStatusStillNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error_code":"500","error_remark":"Internal"}`))
	}))
	defer srv.Close()

	client, err := easyparcel.New(easyparcel.Config{APIKey: "k", BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)

	res, err := client.CheckBalance(context.Background())

	require.NoError(t, err)
	assert.Equal(t, &easyparcel.RemoteError{Code: "500", Message: "Internal"}, res.Error)
}

func TestClient_ConcurrentCalls(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				client.UseSandbox()
			}
			res, err := client.CheckBalance(context.Background())
			assert.NoError(t, err)
			assert.True(t, res.Success)
		}(i)
	}
	wg.Wait()

	assert.Len(t, transport.Requests(), 20)
}

func TestClient_PrepareShipment(t *testing.T) {
	client := newTestClient(t, mock.NewTransport())

	shipment, err := client.PrepareShipment(easyparcel.Payload{
		"pick_code": "50000",
		"send_code": "11950",
		"weight":    1.0,
		"width":     5,
	})

	require.NoError(t, err)
	assert.Equal(t, easyparcel.Payload{
		"pick_code":    "50000",
		"send_code":    "11950",
		"weight":       1.0,
		"width":        5,
		"height":       0,
		"length":       0,
		"pick_country": "my",
		"send_country": "my",
	}, shipment)
}

func TestClient_PrepareShipmentMissingField(t *testing.T) {
	client := newTestClient(t, mock.NewTransport())

	tests := []struct {
		name    string
		payload easyparcel.Payload
		missing string
	}{
		{"pick_code", easyparcel.Payload{"send_code": "1", "weight": 1}, "pick_code"},
		{"send_code", easyparcel.Payload{"pick_code": "1", "weight": 1}, "send_code"},
		{"weight", easyparcel.Payload{"pick_code": "1", "send_code": "1"}, "weight"},
		{"nil weight", easyparcel.Payload{"pick_code": "1", "send_code": "1", "weight": nil}, "weight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.PrepareShipment(tt.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, easyparcel.ErrMissingField)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestClient_PrepareOrder(t *testing.T) {
	client := newTestClient(t, mock.NewTransport())

	order := easyparcel.NewShipment().
		From(sender).
		To(receiver).
		WithWeight(1).
		WithContent("Books", 50).
		WithServiceID("EP-CS0I").
		WithSMSNotification(true).
		Build()

	prepared, err := client.PrepareOrder(order)

	require.NoError(t, err)
	assert.Equal(t, 1, prepared["sms"])
	assert.Equal(t, 0, prepared["addon_whatsapp_tracking_enabled"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, prepared["collect_date"])
	assert.Equal(t, "Books", prepared["content"])
}

func TestClient_PrepareOrderMissingField(t *testing.T) {
	client := newTestClient(t, mock.NewTransport())

	order := easyparcel.NewShipment().
		From(sender).
		To(receiver).
		WithWeight(1).
		WithServiceID("EP-CS0I").
		Build()

	_, err := client.PrepareOrder(order)

	assert.ErrorIs(t, err, easyparcel.ErrMissingField)
	assert.Contains(t, err.Error(), "content")
}

func TestClient_PrepareShipmentFillsCountryFromPartialAddress(t *testing.T) {
	transport := mock.NewTransport()
	client := newTestClient(t, transport)

	shipment, err := client.PrepareShipment(easyparcel.NewShipment().
		From(easyparcel.Address{Postcode: "50000"}).
		To(easyparcel.Address{Postcode: "11950"}).
		WithDimensions(1, 0, 0, 0).
		Build())
	require.NoError(t, err)

	_, err = client.GetRates(context.Background(), shipment)
	require.NoError(t, err)

	form := transport.LastRequest().Form
	assert.Equal(t, "my", form.Get("bulk[0][pick_country]"))
	assert.Equal(t, "my", form.Get("bulk[0][send_country]"))
}
