package easyparcel

import (
	"fmt"
	"sort"
)

// Logical operation names accepted by Client.Call.
const (
	OpCheckBalance      = "checkBalance"
	OpGetRates          = "getRates"
	OpSubmitOrder       = "submitOrder"
	OpPayOrder          = "payOrder"
	OpGetParcelCategory = "getParcelCategory"
	OpGetCourierList    = "getCourierList"
	OpGetCourierDropoff = "getCourierDropoff"
)

// endpoints maps operation names to the API's ac query codes.
var endpoints = map[string]string{
	OpCheckBalance:      "EPCheckCreditBalance",
	OpGetRates:          "EPRateCheckingBulk",
	OpSubmitOrder:       "EPSubmitOrderBulk",
	OpPayOrder:          "EPPayOrderBulk",
	OpGetParcelCategory: "EPGetParcelCategory",
	OpGetCourierList:    "EPCourierList",
	OpGetCourierDropoff: "EPCourierDropoff",
}

// ActionCode returns the ac code for an operation name.
func ActionCode(operation string) (string, error) {
	code, ok := endpoints[operation]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidOperation, operation)
	}
	return code, nil
}

// Operations returns the registered operation names, sorted.
func Operations() []string {
	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
