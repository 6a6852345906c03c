package scanning

import (
	"context"
	"errors"
)

// ErrExtractionFailed marks a transport or parse fault from the extraction backend.
// A document that the backend classified as unusable is not a failure.
var ErrExtractionFailed = errors.New("extraction failed")

// DocumentData contains the fields extracted from a bill or warranty card
type DocumentData struct {
	IsValidDocument   bool     `json:"is_valid_document"`
	ValidationMessage string   `json:"validation_message"`
	DeviceSerial      string   `json:"device_serial"`
	BrandName         string   `json:"brand_name"`
	WarrantyPeriod    string   `json:"warranty_period"`
	PurchaseDate      string   `json:"purchase_date"` // YYYY-MM-DD
	ExpiryDate        string   `json:"expiry_date"`   // YYYY-MM-DD
	FreeServiceDates  []string `json:"free_service_dates"`
	HelplineNumber    string   `json:"helpline_number"`
	InvoiceNumber     string   `json:"invoice_number"`
	ServiceReceipt    string   `json:"service_receipt"`
	Category          string   `json:"category"`
}

// Extractor defines the interface for document extraction backends
type Extractor interface {
	// ExtractDocument classifies a single image and extracts warranty fields from it
	ExtractDocument(ctx context.Context, imageData []byte, contentType string) (*DocumentData, error)
	// Close closes the extractor and releases resources
	Close() error
}
