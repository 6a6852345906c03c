package warranty

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/warranty-tracker/internal/identity"
)

// IDGenerator generates unique IDs for devices
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Service handles device record operations for the identity found in the context
type Service struct {
	db          DB
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUID ids and the system clock
func NewService(db DB, storage Storage) *Service {
	return NewServiceWithDeps(db, storage, uuidGenerator{}, systemClock{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// owner fails fast, before any store call, when nobody is signed in
func (s *Service) owner(ctx context.Context) (string, error) {
	id, ok := identity.FromContext(ctx)
	if !ok || id.OwnerID == "" {
		return "", ErrAuthRequired
	}
	return id.OwnerID, nil
}

// CreateDevice validates and persists a reviewed draft. Defaults are substituted
// here and nowhere else. The bill image is optional.
func (s *Service) CreateDevice(ctx context.Context, fields Fields, bill *Bill) (*Device, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(fields.DeviceSerial) != "" {
		existing, err := s.db.FindBySerial(ctx, ownerID, fields.DeviceSerial)
		switch {
		case err != nil:
			// Best effort: an index or transport fault must not block the save
			slog.Warn("Duplicate check failed, proceeding with save",
				"owner_id", ownerID,
				"error", err,
			)
		case len(existing) > 0:
			return nil, ErrDuplicateEntry
		}
	}

	device := &Device{
		ID:        s.idGenerator.Generate(),
		OwnerID:   ownerID,
		Fields:    ApplyDefaults(fields),
		CreatedAt: s.timeSource.Now(),
	}

	if bill != nil && len(bill.Data) > 0 {
		name, err := s.storage.Save(fmt.Sprintf("%s_%s", device.ID, sanitizeFilename(bill.Filename)), bill.Data)
		if err != nil {
			return nil, persistErr("saving bill image", err)
		}
		device.BillFile = name
		device.BillContentType = bill.ContentType
	}

	if err := s.db.SaveDevice(ctx, device); err != nil {
		if device.BillFile != "" {
			if derr := s.storage.Delete(device.BillFile); derr != nil {
				slog.Warn("Failed to clean up bill image", "filename", device.BillFile, "error", derr)
			}
		}
		return nil, persistErr("saving device", err)
	}

	slog.Info("Device saved", "id", device.ID, "owner_id", ownerID)
	return device, nil
}

// GetDevice retrieves one of the caller's devices
func (s *Service) GetDevice(ctx context.Context, id string) (*Device, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	device, err := s.db.GetDevice(ctx, ownerID, id)
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, persistErr("getting device", err)
	}
	return device, nil
}

// ListDevices returns the caller's devices, newest first. A non-empty query keeps
// devices whose brand or category contains it, ignoring case.
func (s *Service) ListDevices(ctx context.Context, query string) ([]*Device, error) {
	ownerID, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	devices, err := s.db.ListDevices(ctx, ownerID)
	if err != nil {
		return nil, persistErr("listing devices", err)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return devices, nil
	}
	filtered := make([]*Device, 0, len(devices))
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.BrandName), query) ||
			strings.Contains(strings.ToLower(d.Category), query) {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// DeleteDevice removes a device and its bill image. There is no undo.
func (s *Service) DeleteDevice(ctx context.Context, id string) error {
	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.DeleteDevice(ctx, device.OwnerID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return persistErr("deleting device", err)
	}

	if device.BillFile != "" {
		if err := s.storage.Delete(device.BillFile); err != nil {
			// Record is gone; bill removal is best effort
			slog.Warn("Failed to delete bill image", "filename", device.BillFile, "error", err)
		}
	}
	return nil
}

// GetBillFile retrieves the bill image stored with a device
func (s *Service) GetBillFile(ctx context.Context, id string) ([]byte, string, error) {
	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if device.BillFile == "" {
		return nil, "", fmt.Errorf("%w: no bill stored for %s", ErrNotFound, id)
	}

	data, err := s.storage.Get(device.BillFile)
	if err != nil {
		return nil, "", persistErr("getting bill image", err)
	}
	contentType := device.BillContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// ExportDevices writes the caller's devices as an XLSX workbook
func (s *Service) ExportDevices(ctx context.Context, w io.Writer) error {
	devices, err := s.ListDevices(ctx, "")
	if err != nil {
		return err
	}
	return WriteWorkbook(w, devices)
}
