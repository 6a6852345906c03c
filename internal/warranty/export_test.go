package warranty

import (
	"bytes"
	"time"

	"github.com/xuri/excelize/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WriteWorkbook", func() {
	It("writes a header row and one row per device", func() {
		devices := []*Device{
			{
				ID: "a",
				Fields: Fields{
					BrandName:        "Samsung",
					Category:         "Television",
					DeviceSerial:     "TV-1",
					ExpiryDate:       "2026-01-01",
					FreeServiceDates: []string{"2024-07-01", "2025-01-01"},
				},
				CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			},
		}

		var buf bytes.Buffer
		Expect(WriteWorkbook(&buf, devices)).To(Succeed())

		f, err := excelize.OpenReader(&buf)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		rows, err := f.GetRows(exportSheet)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0][0]).To(Equal("Brand"))
		Expect(rows[1][0]).To(Equal("Samsung"))
		Expect(rows[1][2]).To(Equal("TV-1"))
		Expect(rows[1][6]).To(Equal("2024-07-01, 2025-01-01"))
		Expect(rows[1][10]).To(Equal("2024-01-15T10:00:00Z"))
	})

	It("writes only the header for no devices", func() {
		var buf bytes.Buffer
		Expect(WriteWorkbook(&buf, nil)).To(Succeed())

		f, err := excelize.OpenReader(&buf)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		rows, err := f.GetRows(exportSheet)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
	})
})
