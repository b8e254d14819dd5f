// Package mock provides an in-memory EasyParcel transport for tests and demos.
package mock

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/easyparcel/pkg/easyparcel"
)

// ErrSimulated is returned by Do when SimulateErrors is set.
var ErrSimulated = errors.New("simulated transport error")

// Request is a request seen by the transport.
type Request struct {
	URL    *url.URL
	Action string
	Form   url.Values
}

// Transport answers EasyParcel calls without touching the network. It
// satisfies easyparcel.Doer.
type Transport struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	// Responses overrides the canned body for an action code. Values are
	// JSON-encoded, except []byte and string which are sent verbatim. Use
	// SetResponse once calls may be in flight.
	Responses map[string]any

	// OnDo, when set, replaces all default behaviour.
	OnDo func(req *http.Request) (*http.Response, error)

	mu       sync.Mutex
	requests []Request
}

// NewTransport creates a transport with the default canned responses.
func NewTransport() *Transport {
	return &Transport{Responses: make(map[string]any)}
}

// Do records the request and returns a canned response.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	seen, err := t.record(req)
	if err != nil {
		return nil, err
	}

	if t.SimulateLatency > 0 {
		select {
		case <-time.After(t.SimulateLatency):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	if t.SimulateErrors {
		return nil, ErrSimulated
	}

	if t.OnDo != nil {
		return t.OnDo(req)
	}

	body, ok := t.response(seen.Action)
	if !ok {
		body = defaultResponse(seen.Action, seen.Form)
	}
	return respond(req, body)
}

// SetResponse overrides the canned body for action.
func (t *Transport) SetResponse(action string, body any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Responses == nil {
		t.Responses = make(map[string]any)
	}
	t.Responses[action] = body
}

func (t *Transport) response(action string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	body, ok := t.Responses[action]
	return body, ok
}

// Requests returns the requests seen so far.
func (t *Transport) Requests() []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Request, len(t.requests))
	copy(out, t.requests)
	return out
}

// LastRequest returns the most recent request, or a zero Request.
func (t *Transport) LastRequest() Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.requests) == 0 {
		return Request{}
	}
	return t.requests[len(t.requests)-1]
}

func (t *Transport) record(req *http.Request) (Request, error) {
	seen := Request{URL: req.URL, Action: req.URL.Query().Get("ac")}
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return seen, fmt.Errorf("reading request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(data))
		seen.Form, err = url.ParseQuery(string(data))
		if err != nil {
			return seen, fmt.Errorf("parsing form body: %w", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, seen)
	return seen, nil
}

func respond(req *http.Request, body any) (*http.Response, error) {
	var data []byte
	switch b := body.(type) {
	case []byte:
		data = b
	case string:
		data = []byte(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding mock response: %w", err)
		}
		data = encoded
	}

	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: int64(len(data)),
		Request:       req,
	}, nil
}

// defaultResponse builds a plausible body for each known action.
func defaultResponse(action string, form url.Values) map[string]any {
	switch action {
	case "EPCheckCreditBalance":
		return ok(map[string]any{"credit_balance": "100.50", "currency": "MYR"})
	case "EPRateCheckingBulk":
		results := make([]any, 0)
		for range bulkCount(form, "pick_code") {
			results = append(results, map[string]any{
				"status":  "Success",
				"remarks": "",
				"rates":   sampleRates(),
			})
		}
		return ok(results)
	case "EPSubmitOrderBulk":
		results := make([]any, 0)
		for i := range bulkCount(form, "service_id") {
			results = append(results, map[string]any{
				"status":         "Success",
				"remarks":        "Order Successfully Placed",
				"order_number":   "EI-" + strings.ToUpper(uuid.New().String()[:8]),
				"price":          "6.50",
				"courier":        "Pos Laju",
				"collect_date":   form.Get(fmt.Sprintf("bulk[%d][collect_date]", i)),
				"parcel_status":  "pending",
				"shipment_price": "6.50",
			})
		}
		return ok(results)
	case "EPPayOrderBulk":
		results := make([]any, 0)
		for i := range bulkCount(form, "order_no") {
			orderNo := form.Get(fmt.Sprintf("bulk[%d][order_no]", i))
			results = append(results, map[string]any{
				"orderno":    orderNo,
				"messagenow": "Fully Paid",
				"parcel": []any{map[string]any{
					"parcelno": "EP-" + strings.ToUpper(uuid.New().String()[:8]),
					"awb":      fmt.Sprintf("%d", 200000000000+time.Now().UnixNano()%100000000000),
				}},
			})
		}
		return ok(results)
	case "EPGetParcelCategory":
		return ok([]any{
			map[string]any{"parcel_category_id": "1", "parcel_category": "Book"},
			map[string]any{"parcel_category_id": "2", "parcel_category": "Document"},
		})
	case "EPCourierList":
		return ok([]any{
			map[string]any{"courier_id": "poslaju", "courier_name": "Pos Laju"},
			map[string]any{"courier_id": "dhl", "courier_name": "DHL"},
		})
	case "EPCourierDropoff":
		return ok([]any{map[string]any{
			"point_id":   "DP-" + form.Get("courier_id") + "-01",
			"point_name": "Drop Point",
			"postcode":   form.Get("postcode"),
		}})
	default:
		return map[string]any{
			"error_code":   "2",
			"error_remark": "Unknown action " + action,
		}
	}
}

func ok(result any) map[string]any {
	return map[string]any{
		"api_status":   "Success",
		"error_code":   "0",
		"error_remark": "",
		"result":       result,
	}
}

func sampleRates() []any {
	return []any{
		map[string]any{"service_id": "EP-CS0I", "service_name": "Pos Laju", "courier_name": "Pos Laju", "price": "6.50", "delivery": "1-2 working day(s)"},
		map[string]any{"service_id": "EP-CS0W", "service_name": "DHL eCommerce", "courier_name": "DHL", "price": "7.20", "delivery": "2-3 working day(s)"},
	}
}

// bulkCount returns how many bulk[i][field] entries the form carries.
func bulkCount(form url.Values, field string) int {
	n := 0
	for form.Has(fmt.Sprintf("bulk[%d][%s]", n, field)) {
		n++
	}
	return n
}

var _ easyparcel.Doer = (*Transport)(nil)
