package warranty

import "time"

// Fields holds the user-editable part of a device record
type Fields struct {
	BrandName        string   `json:"brand_name"`
	Category         string   `json:"category"`
	DeviceSerial     string   `json:"device_serial"`
	WarrantyPeriod   string   `json:"warranty_period"` // free-form, e.g. "24 months"
	PurchaseDate     string   `json:"purchase_date"`   // YYYY-MM-DD
	ExpiryDate       string   `json:"expiry_date"`     // YYYY-MM-DD, empty means no known expiry
	FreeServiceDates []string `json:"free_service_dates"`
	HelplineNumber   string   `json:"helpline_number"`
	InvoiceNumber    string   `json:"invoice_number"`
	ServiceReceipt   string   `json:"service_receipt"`
}

// Device represents a tracked appliance warranty owned by one user
type Device struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Fields
	BillFile        string    `json:"bill_file,omitempty"` // stored bill image, if one was captured
	BillContentType string    `json:"bill_content_type,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Bill is the captured image a device record was extracted from
type Bill struct {
	Filename    string
	ContentType string
	Data        []byte
}
