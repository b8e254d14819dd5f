package easyparcel

import (
	"maps"
	"strings"
	"time"
)

// Payload is a finalized shipment or order: field name to scalar value.
type Payload map[string]any

// Address is a pickup or delivery party as the API expects it.
type Address struct {
	Name     string
	Contact  string
	Address1 string
	City     string
	Postcode string
	State    string
	Country  string // ISO 3166-1 alpha-2, written lower-cased
}

// ShipmentBuilder accumulates payload fields through chained setters.
// Setters never fail; a later write to the same field replaces the earlier one.
type ShipmentBuilder struct {
	data Payload
}

// NewShipment returns an empty builder.
func NewShipment() *ShipmentBuilder {
	return &ShipmentBuilder{data: make(Payload)}
}

// From sets the pickup party.
func (b *ShipmentBuilder) From(a Address) *ShipmentBuilder {
	return b.party("pick", a)
}

// FromCompany sets the sender company name.
func (b *ShipmentBuilder) FromCompany(company string) *ShipmentBuilder {
	return b.Set("pick_company", company)
}

// FromAddress2 sets the second pickup address line.
func (b *ShipmentBuilder) FromAddress2(line string) *ShipmentBuilder {
	return b.Set("pick_addr2", line)
}

// FromMobile sets the sender mobile number.
func (b *ShipmentBuilder) FromMobile(mobile string) *ShipmentBuilder {
	return b.Set("pick_mobile", mobile)
}

// To sets the receiving party.
func (b *ShipmentBuilder) To(a Address) *ShipmentBuilder {
	return b.party("send", a)
}

// ToCompany sets the receiver company name.
func (b *ShipmentBuilder) ToCompany(company string) *ShipmentBuilder {
	return b.Set("send_company", company)
}

// ToAddress2 sets the second delivery address line.
func (b *ShipmentBuilder) ToAddress2(line string) *ShipmentBuilder {
	return b.Set("send_addr2", line)
}

// ToMobile sets the receiver mobile number.
func (b *ShipmentBuilder) ToMobile(mobile string) *ShipmentBuilder {
	return b.Set("send_mobile", mobile)
}

// ToEmail sets the receiver email.
func (b *ShipmentBuilder) ToEmail(email string) *ShipmentBuilder {
	return b.Set("send_email", email)
}

// WithDimensions sets weight in kg and width, length, height in cm.
func (b *ShipmentBuilder) WithDimensions(weight, width, length, height float64) *ShipmentBuilder {
	b.data["weight"] = weight
	b.data["width"] = width
	b.data["length"] = length
	b.data["height"] = height
	return b
}

// WithWeight sets the weight and resets width, length and height to 0.
func (b *ShipmentBuilder) WithWeight(weight float64) *ShipmentBuilder {
	return b.WithDimensions(weight, 0, 0, 0)
}

// WithContent sets the content description and its declared value.
func (b *ShipmentBuilder) WithContent(content string, value float64) *ShipmentBuilder {
	b.data["content"] = content
	b.data["value"] = value
	return b
}

// WithValue sets the declared parcel value.
func (b *ShipmentBuilder) WithValue(value float64) *ShipmentBuilder {
	return b.Set("value", value)
}

// WithServiceID sets the service returned by a rate lookup.
func (b *ShipmentBuilder) WithServiceID(serviceID string) *ShipmentBuilder {
	return b.Set("service_id", serviceID)
}

// WithCollectionDate sets the collection date (YYYY-MM-DD).
func (b *ShipmentBuilder) WithCollectionDate(date string) *ShipmentBuilder {
	return b.Set("collect_date", date)
}

// WithCollectionTime sets the collection date from t.
func (b *ShipmentBuilder) WithCollectionTime(t time.Time) *ShipmentBuilder {
	return b.WithCollectionDate(t.Format(dateLayout))
}

// WithReference sets the caller's reference number.
func (b *ShipmentBuilder) WithReference(reference string) *ShipmentBuilder {
	return b.Set("reference_number", reference)
}

// WithInsurance toggles the insurance add-on.
func (b *ShipmentBuilder) WithInsurance(enabled bool) *ShipmentBuilder {
	return b.Set("addon_insurance_enabled", flag(enabled))
}

// WithSMSNotification toggles SMS notification.
func (b *ShipmentBuilder) WithSMSNotification(enabled bool) *ShipmentBuilder {
	return b.Set("sms", flag(enabled))
}

// WithWhatsAppTracking toggles the WhatsApp tracking add-on.
func (b *ShipmentBuilder) WithWhatsAppTracking(enabled bool) *ShipmentBuilder {
	return b.Set("addon_whatsapp_tracking_enabled", flag(enabled))
}

// WithParcelCategory sets the parcel category ID.
func (b *ShipmentBuilder) WithParcelCategory(categoryID string) *ShipmentBuilder {
	return b.Set("parcel_category_id", categoryID)
}

// WithPickupPoint sets the pickup point.
func (b *ShipmentBuilder) WithPickupPoint(point string) *ShipmentBuilder {
	return b.Set("pick_point", point)
}

// WithDropoffPoint sets the drop-off point.
func (b *ShipmentBuilder) WithDropoffPoint(point string) *ShipmentBuilder {
	return b.Set("send_point", point)
}

// Set writes an arbitrary field. Country fields are lower-cased. A nil value
// is ignored.
func (b *ShipmentBuilder) Set(field string, value any) *ShipmentBuilder {
	if value == nil {
		return b
	}
	if s, ok := value.(string); ok && isCountryField(field) {
		value = strings.ToLower(s)
	}
	b.data[field] = value
	return b
}

// Build returns a copy of the accumulated fields. Later setter calls do not
// affect payloads already built.
func (b *ShipmentBuilder) Build() Payload {
	return maps.Clone(b.data)
}

// party writes the non-empty parts of a; empty parts stay unset so defaults
// applied later can fill them.
func (b *ShipmentBuilder) party(prefix string, a Address) *ShipmentBuilder {
	for _, f := range []struct{ suffix, value string }{
		{"_name", a.Name},
		{"_contact", a.Contact},
		{"_addr1", a.Address1},
		{"_city", a.City},
		{"_code", a.Postcode},
		{"_state", a.State},
		{"_country", a.Country},
	} {
		if f.value != "" {
			b.Set(prefix+f.suffix, f.value)
		}
	}
	return b
}

func isCountryField(field string) bool {
	return field == "pick_country" || field == "send_country"
}

func flag(enabled bool) int {
	if enabled {
		return 1
	}
	return 0
}
