package dashboard

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/warranty-tracker/internal/warranty"
)

var _ = Describe("CardFor", func() {
	var now time.Time

	BeforeEach(func() {
		now = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	})

	It("marks an expired device with negative days", func() {
		card := CardFor(device("old", "2024-01-10"), now)
		Expect(card.Expired).To(BeTrue())
		Expect(card.ExpiringSoon).To(BeFalse())
		Expect(*card.DaysRemaining).To(BeNumerically("<", 0))
	})

	It("marks an active device expiring soon", func() {
		card := CardFor(device("soon", "2024-02-01"), now)
		Expect(card.Expired).To(BeFalse())
		Expect(card.ExpiringSoon).To(BeTrue())
		Expect(*card.DaysRemaining).To(Equal(17))
	})

	It("treats an unparseable expiry like no expiry", func() {
		card := CardFor(device("odd", "31/12/2099"), now)
		Expect(card.Expired).To(BeFalse())
		Expect(card.ExpiringSoon).To(BeFalse())
		Expect(card.DaysRemaining).To(BeNil())
	})

	It("agrees with Compute on what counts as active", func() {
		devices := []*warranty.Device{
			device("a", "2024-01-15"), device("b", "2024-01-16"), device("c", ""), device("d", "x"),
		}
		active := 0
		for _, c := range Cards(devices, now) {
			if !c.Expired {
				active++
			}
		}
		Expect(active).To(Equal(Compute(devices, now).Active))
	})

	It("sorts service dates and marks the past ones", func() {
		d := device("svc", "")
		d.FreeServiceDates = []string{"2024-07-01", "bad", "2023-07-01", "2024-01-15"}

		card := CardFor(d, now)

		Expect(card.ServiceDates).To(Equal([]ServiceDate{
			{Date: "2023-07-01", Past: true},
			{Date: "2024-01-15", Past: true},
			{Date: "2024-07-01", Past: false},
			{Date: "bad", Past: false},
		}))
		Expect(d.FreeServiceDates[0]).To(Equal("2024-07-01"))
	})
})
