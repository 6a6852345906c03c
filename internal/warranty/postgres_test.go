package warranty

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PostgresDB", func() {
	var (
		ctx     context.Context
		mock    pgxmock.PgxPoolIface
		db      *PostgresDB
		created time.Time
		columns []string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		mock, err = pgxmock.NewPool()
		Expect(err).NotTo(HaveOccurred())
		db = NewPostgresDBWithPool(mock)
		created = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		columns = []string{
			"id", "owner_id", "brand_name", "category", "device_serial", "warranty_period", "purchase_date",
			"expiry_date", "free_service_dates", "helpline_number", "invoice_number", "service_receipt",
			"bill_file", "bill_content_type", "created_at",
		}
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	row := func(id string) []any {
		return []any{
			id, "owner-1", "Samsung", "Television", "TV-1", "2 years", "2024-01-01",
			"2026-01-01", []string{"2024-07-01"}, "1800", "INV-9", "", "", "", created,
		}
	}

	Describe("SaveDevice", func() {
		It("inserts every column", func() {
			d := &Device{ID: "a", OwnerID: "owner-1", Fields: Fields{BrandName: "Samsung"}, CreatedAt: created}
			mock.ExpectExec("INSERT INTO devices").
				WithArgs("a", "owner-1", "Samsung", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), created).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))

			Expect(db.SaveDevice(ctx, d)).To(Succeed())
		})

		It("tags insufficient privilege as permission denied", func() {
			mock.ExpectExec("INSERT INTO devices").
				WithArgs(
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnError(&pgconn.PgError{Code: "42501", Message: "permission denied for table devices"})

			err := db.SaveDevice(ctx, &Device{ID: "a", OwnerID: "owner-1"})
			Expect(err).To(MatchError(ErrPermissionDenied))
		})
	})

	Describe("GetDevice", func() {
		It("scans the row", func() {
			mock.ExpectQuery("(?s)SELECT .+ FROM devices WHERE id=\\$1 AND owner_id=\\$2").
				WithArgs("a", "owner-1").
				WillReturnRows(mock.NewRows(columns).AddRow(row("a")...))

			d, err := db.GetDevice(ctx, "owner-1", "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.BrandName).To(Equal("Samsung"))
			Expect(d.FreeServiceDates).To(Equal([]string{"2024-07-01"}))
			Expect(d.CreatedAt).To(Equal(created))
		})

		It("maps no rows to ErrNotFound", func() {
			mock.ExpectQuery("(?s)SELECT .+ FROM devices").
				WithArgs("missing", "owner-1").
				WillReturnError(pgx.ErrNoRows)

			_, err := db.GetDevice(ctx, "owner-1", "missing")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("ListDevices", func() {
		It("returns the owner's rows", func() {
			mock.ExpectQuery("(?s)SELECT .+ FROM devices WHERE owner_id=\\$1 ORDER BY created_at DESC").
				WithArgs("owner-1").
				WillReturnRows(mock.NewRows(columns).AddRow(row("b")...).AddRow(row("a")...))

			devices, err := db.ListDevices(ctx, "owner-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).To(HaveLen(2))
			Expect(devices[0].ID).To(Equal("b"))
		})

		It("passes query faults through", func() {
			setupErr := errors.New("connection reset")
			mock.ExpectQuery("SELECT").WithArgs("owner-1").WillReturnError(setupErr)

			_, err := db.ListDevices(ctx, "owner-1")
			Expect(err).To(MatchError(setupErr))
		})
	})

	Describe("FindBySerial", func() {
		It("filters by owner and serial", func() {
			mock.ExpectQuery("WHERE owner_id=\\$1 AND device_serial=\\$2").
				WithArgs("owner-1", "TV-1").
				WillReturnRows(mock.NewRows(columns).AddRow(row("a")...))

			devices, err := db.FindBySerial(ctx, "owner-1", "TV-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).To(HaveLen(1))
		})
	})

	Describe("DeleteDevice", func() {
		It("deletes the owner's row", func() {
			mock.ExpectExec("DELETE FROM devices").
				WithArgs("a", "owner-1").
				WillReturnResult(pgxmock.NewResult("DELETE", 1))

			Expect(db.DeleteDevice(ctx, "owner-1", "a")).To(Succeed())
		})

		It("returns ErrNotFound when nothing matched", func() {
			mock.ExpectExec("DELETE FROM devices").
				WithArgs("a", "owner-2").
				WillReturnResult(pgxmock.NewResult("DELETE", 0))

			Expect(db.DeleteDevice(ctx, "owner-2", "a")).To(MatchError(ErrNotFound))
		})
	})
})
