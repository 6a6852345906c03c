package warranty

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		ctx context.Context
		db  *BoltDB
	)

	newDevice := func(id, owner, serial string, created time.Time) *Device {
		return &Device{
			ID:      id,
			OwnerID: owner,
			Fields: Fields{
				BrandName:        "Whirlpool",
				Category:         "Refrigerator",
				DeviceSerial:     serial,
				PurchaseDate:     "2024-01-01",
				ExpiryDate:       "2026-01-01",
				FreeServiceDates: []string{"2024-07-01"},
			},
			CreatedAt: created,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveDevice", func() {
		It("round-trips the device", func() {
			d := newDevice("a", "owner-1", "SN", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
			Expect(db.SaveDevice(ctx, d)).To(Succeed())

			saved, err := db.GetDevice(ctx, "owner-1", "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Fields).To(Equal(d.Fields))
			Expect(saved.CreatedAt.Equal(d.CreatedAt)).To(BeTrue())
		})

		It("refuses a device without an owner", func() {
			Expect(db.SaveDevice(ctx, newDevice("a", "", "SN", time.Now()))).NotTo(Succeed())
		})
	})

	Describe("GetDevice", func() {
		BeforeEach(func() {
			Expect(db.SaveDevice(ctx, newDevice("a", "owner-1", "SN", time.Now()))).To(Succeed())
		})

		It("returns ErrNotFound for an unknown ID", func() {
			_, err := db.GetDevice(ctx, "owner-1", "missing")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("returns ErrNotFound for another owner", func() {
			_, err := db.GetDevice(ctx, "owner-2", "a")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("ListDevices", func() {
		BeforeEach(func() {
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			Expect(db.SaveDevice(ctx, newDevice("old", "owner-1", "1", base))).To(Succeed())
			Expect(db.SaveDevice(ctx, newDevice("new", "owner-1", "2", base.Add(time.Hour)))).To(Succeed())
			Expect(db.SaveDevice(ctx, newDevice("other", "owner-2", "3", base))).To(Succeed())
		})

		It("returns the owner's devices newest first", func() {
			devices, err := db.ListDevices(ctx, "owner-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).To(HaveLen(2))
			Expect(devices[0].ID).To(Equal("new"))
			Expect(devices[1].ID).To(Equal("old"))
		})

		It("returns an empty list for an owner with nothing saved", func() {
			devices, err := db.ListDevices(ctx, "nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).NotTo(BeNil())
			Expect(devices).To(BeEmpty())
		})
	})

	Describe("FindBySerial", func() {
		BeforeEach(func() {
			Expect(db.SaveDevice(ctx, newDevice("a", "owner-1", "ABC-123", time.Now()))).To(Succeed())
			Expect(db.SaveDevice(ctx, newDevice("b", "owner-2", "ABC-123", time.Now()))).To(Succeed())
		})

		It("matches the exact serial within the owner", func() {
			devices, err := db.FindBySerial(ctx, "owner-1", "ABC-123")
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).To(HaveLen(1))
			Expect(devices[0].ID).To(Equal("a"))
		})

		It("is case sensitive", func() {
			devices, err := db.FindBySerial(ctx, "owner-1", "abc-123")
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).To(BeEmpty())
		})
	})

	Describe("DeleteDevice", func() {
		BeforeEach(func() {
			Expect(db.SaveDevice(ctx, newDevice("a", "owner-1", "SN", time.Now()))).To(Succeed())
		})

		It("removes the device", func() {
			Expect(db.DeleteDevice(ctx, "owner-1", "a")).To(Succeed())
			_, err := db.GetDevice(ctx, "owner-1", "a")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("returns ErrNotFound for another owner", func() {
			Expect(db.DeleteDevice(ctx, "owner-2", "a")).To(MatchError(ErrNotFound))
			_, err := db.GetDevice(ctx, "owner-1", "a")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
