package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// alternate layouts the model sometimes answers with despite the prompt
var dateLayouts = []string{
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// rawDocument mirrors DocumentData with pointers so absent keys can be told apart
type rawDocument struct {
	IsValidDocument   *bool    `json:"is_valid_document"`
	ValidationMessage *string  `json:"validation_message"`
	DeviceSerial      *string  `json:"device_serial"`
	BrandName         *string  `json:"brand_name"`
	WarrantyPeriod    *string  `json:"warranty_period"`
	PurchaseDate      *string  `json:"purchase_date"`
	ExpiryDate        *string  `json:"expiry_date"`
	FreeServiceDates  []string `json:"free_service_dates"`
	HelplineNumber    *string  `json:"helpline_number"`
	InvoiceNumber     *string  `json:"invoice_number"`
	ServiceReceipt    *string  `json:"service_receipt"`
	Category          *string  `json:"category"`
}

// parseDocumentJSON parses the JSON answer of an extraction backend
func parseDocumentJSON(text string) (*DocumentData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var raw rawDocument
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if raw.IsValidDocument == nil {
		return nil, fmt.Errorf("response is missing is_valid_document")
	}

	data := &DocumentData{
		IsValidDocument:   *raw.IsValidDocument,
		ValidationMessage: str(raw.ValidationMessage),
		FreeServiceDates:  []string{},
	}

	// Rejected documents carry no fields
	if !data.IsValidDocument {
		return data, nil
	}

	data.DeviceSerial = str(raw.DeviceSerial)
	data.BrandName = str(raw.BrandName)
	data.WarrantyPeriod = str(raw.WarrantyPeriod)
	data.PurchaseDate = normalizeDate(str(raw.PurchaseDate))
	data.ExpiryDate = normalizeDate(str(raw.ExpiryDate))
	data.HelplineNumber = str(raw.HelplineNumber)
	data.InvoiceNumber = str(raw.InvoiceNumber)
	data.ServiceReceipt = str(raw.ServiceReceipt)
	data.Category = str(raw.Category)

	for _, d := range raw.FreeServiceDates {
		if d = normalizeDate(strings.TrimSpace(d)); d != "" {
			data.FreeServiceDates = append(data.FreeServiceDates, d)
		}
	}

	return data, nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// normalizeDate converts a date to YYYY-MM-DD, or returns "" when it can't be read.
// Unlike receipts there is no sensible fallback date for a warranty.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if d, err := time.Parse(isoDate, s); err == nil {
		return d.Format(isoDate)
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(isoDate)
		}
	}
	return ""
}
