package warranty

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Policy", func() {
	Describe("MissingFields", func() {
		It("lists every recommended field of an empty draft in order", func() {
			Expect(MissingFields(Fields{})).To(Equal([]string{
				LabelBrandName, LabelCategory, LabelPurchaseDate, LabelSerial,
			}))
		})

		It("treats whitespace as missing", func() {
			missing := MissingFields(Fields{BrandName: "LG", Category: " ", PurchaseDate: "2024-01-01", DeviceSerial: "\t"})
			Expect(missing).To(Equal([]string{LabelCategory, LabelSerial}))
		})

		It("is empty once everything is filled in", func() {
			Expect(MissingFields(Fields{
				BrandName: "LG", Category: "TV", PurchaseDate: "2024-01-01", DeviceSerial: "X",
			})).To(BeEmpty())
		})

		It("drops and restores the serial as it is edited", func() {
			f := Fields{BrandName: "LG", Category: "TV", PurchaseDate: "2024-01-01", DeviceSerial: "X"}
			Expect(MissingFields(f)).NotTo(ContainElement(LabelSerial))
			f.DeviceSerial = ""
			Expect(MissingFields(f)).To(ContainElement(LabelSerial))
		})
	})

	Describe("ApplyDefaults", func() {
		It("fills blank brand and category", func() {
			f := ApplyDefaults(Fields{BrandName: "  "})
			Expect(f.BrandName).To(Equal(DefaultBrandName))
			Expect(f.Category).To(Equal(DefaultCategory))
		})

		It("keeps values that are present", func() {
			f := ApplyDefaults(Fields{BrandName: "Dyson", Category: "Vacuum"})
			Expect(f.BrandName).To(Equal("Dyson"))
			Expect(f.Category).To(Equal("Vacuum"))
		})

		It("leaves other blank fields blank", func() {
			f := ApplyDefaults(Fields{})
			Expect(f.DeviceSerial).To(BeEmpty())
			Expect(f.ExpiryDate).To(BeEmpty())
			Expect(f.FreeServiceDates).To(Equal([]string{}))
		})

		It("does not share the service date slice with the draft", func() {
			draft := Fields{FreeServiceDates: []string{"2024-07-01"}}
			f := ApplyDefaults(draft)
			f.FreeServiceDates[0] = "changed"
			Expect(draft.FreeServiceDates[0]).To(Equal("2024-07-01"))
		})
	})
})
