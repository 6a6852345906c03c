package warranty

import "strings"

const (
	DefaultBrandName = "Unknown Brand"
	DefaultCategory  = "Appliance"
)

// Labels of the recommended fields, in display order
const (
	LabelBrandName    = "Brand Name"
	LabelCategory     = "Category"
	LabelPurchaseDate = "Purchase Date"
	LabelSerial       = "Serial No."
)

// MissingFields lists the recommended fields that are empty after trimming.
// The result is advisory; saving is still allowed.
func MissingFields(f Fields) []string {
	missing := make([]string, 0, 4)
	if blank(f.BrandName) {
		missing = append(missing, LabelBrandName)
	}
	if blank(f.Category) {
		missing = append(missing, LabelCategory)
	}
	if blank(f.PurchaseDate) {
		missing = append(missing, LabelPurchaseDate)
	}
	if blank(f.DeviceSerial) {
		missing = append(missing, LabelSerial)
	}
	return missing
}

// ApplyDefaults substitutes the persistence defaults. It must only be called when
// the record is about to be written.
func ApplyDefaults(f Fields) Fields {
	if blank(f.BrandName) {
		f.BrandName = DefaultBrandName
	}
	if blank(f.Category) {
		f.Category = DefaultCategory
	}
	if f.FreeServiceDates == nil {
		f.FreeServiceDates = []string{}
	} else {
		f.FreeServiceDates = append([]string{}, f.FreeServiceDates...)
	}
	return f
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
