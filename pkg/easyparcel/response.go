package easyparcel

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// successCode is the only error_code value the API uses for success.
const successCode = "0"

// Shape records which response layout Normalize recognized.
type Shape string

const (
	ShapeError Shape = "error" // non-zero or missing error_code
	ShapeBulk  Shape = "bulk"  // result.success / result.fail split
	ShapeList  Shape = "list"  // non-empty result list
	ShapeValue Shape = "value" // any other result value
	ShapeBody  Shape = "body"  // no result field; the whole body is the data
)

// Outcome is the three-state reading of a Result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// Result is the canonical form of an API response.
//
// Error is set exactly when Success is false. Failed is set only when a bulk
// call succeeded overall but some items were rejected, so a successful Result
// can still carry failures. HasError checks both fields at once; Outcome
// distinguishes the cases.
type Result struct {
	Success bool           `json:"success" yaml:"success"`
	Data    any            `json:"data" yaml:"data"`
	Error   *RemoteError   `json:"error,omitempty" yaml:"error,omitempty"`
	Failed  any            `json:"failed,omitempty" yaml:"failed,omitempty"`
	Shape   Shape          `json:"shape" yaml:"shape"`
	Raw     map[string]any `json:"raw" yaml:"raw"`
}

// Normalize classifies a decoded response body. The first matching rule wins:
// error code, bulk split, non-empty list, any other result, no result.
func Normalize(raw map[string]any) *Result {
	res := &Result{Raw: raw}

	code, ok := raw["error_code"].(string)
	if !ok || code != successCode {
		res.Shape = ShapeError
		res.Error = remoteError(raw)
		return res
	}
	res.Success = true

	result, ok := raw["result"]
	if !ok || result == nil {
		res.Shape = ShapeBody
		res.Data = raw
		return res
	}

	if m, ok := result.(map[string]any); ok && m["success"] != nil {
		res.Shape = ShapeBulk
		res.Data = m["success"]
		if fail := m["fail"]; !isEmpty(fail) {
			res.Failed = fail
		}
		return res
	}

	if list, ok := result.([]any); ok && len(list) > 0 {
		res.Shape = ShapeList
	} else {
		res.Shape = ShapeValue
	}
	res.Data = result
	return res
}

// Outcome reports full success, partial bulk success or failure.
func (r *Result) Outcome() Outcome {
	switch {
	case !r.Success:
		return OutcomeFailure
	case r.Failed != nil:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}

// HasError reports whether the result carries a remote error or bulk failures.
func (r *Result) HasError() bool {
	return r.Error != nil || r.Failed != nil
}

// Err returns the remote error, or nil when the call succeeded.
func (r *Result) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}

// Response returns accessors over the raw body.
func (r *Result) Response() Response {
	return NewResponse(r.Raw)
}

func remoteError(raw map[string]any) *RemoteError {
	e := &RemoteError{Code: "unknown", Message: "Unknown error"}
	if v, ok := raw["error_code"]; ok && v != nil {
		e.Code = scalarString(v)
	}
	if v, ok := raw["error_remark"]; ok && v != nil {
		e.Message = scalarString(v)
	}
	return e
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case string:
		return t == "" || t == "0"
	case bool:
		return !t
	case float64:
		return t == 0
	default:
		return false
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Response exposes best-effort projections of a raw response body. Every
// accessor returns nil or empty when its path is missing.
type Response struct {
	data map[string]any
}

// NewResponse wraps a decoded body.
func NewResponse(raw map[string]any) Response {
	return Response{data: raw}
}

// Successful reports whether error_code is "0".
func (r Response) Successful() bool {
	code, ok := r.data["error_code"].(string)
	return ok && code == successCode
}

// ErrorCode returns error_code, or "" when absent.
func (r Response) ErrorCode() string {
	return stringAt(r.data, "error_code")
}

// ErrorMessage returns error_remark, or "" when absent.
func (r Response) ErrorMessage() string {
	return stringAt(r.data, "error_remark")
}

// Result returns the result value as decoded.
func (r Response) Result() any {
	return r.data["result"]
}

// ResultMap returns the result when it is an object.
func (r Response) ResultMap() map[string]any {
	m, _ := r.data["result"].(map[string]any)
	return m
}

// Rates returns result[0].rates.
func (r Response) Rates() []map[string]any {
	first := r.OrderDetails()
	list, _ := first["rates"].([]any)
	rates := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			rates = append(rates, m)
		}
	}
	return rates
}

// OrderDetails returns result[0].
func (r Response) OrderDetails() map[string]any {
	list, _ := r.data["result"].([]any)
	if len(list) == 0 {
		return nil
	}
	m, _ := list[0].(map[string]any)
	return m
}

// OrderNumber returns result[0].order_number.
func (r Response) OrderNumber() string {
	return stringAt(r.OrderDetails(), "order_number")
}

// ParcelStatus returns result[0].parcel_status.
func (r Response) ParcelStatus() string {
	return stringAt(r.OrderDetails(), "parcel_status")
}

// TrackingNumber returns result[0].tracking_number.
func (r Response) TrackingNumber() string {
	return stringAt(r.OrderDetails(), "tracking_number")
}

// ShipmentCost parses result[0].shipment_price. It returns nil when the
// field is absent or not a number.
func (r Response) ShipmentCost() *float64 {
	v, ok := r.OrderDetails()["shipment_price"]
	if !ok || v == nil {
		return nil
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return nil
		}
		f = n
	case string:
		s := strings.TrimSpace(t)
		if strings.ContainsAny(s, "xX") {
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = n
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Raw returns the underlying body.
func (r Response) Raw() map[string]any {
	return r.data
}

func stringAt(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return scalarString(v)
}
