package warranty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const devicesBucket = "devices"

// DB defines the interface for device record storage. Every call is scoped to
// one owner; implementations never return another owner's records.
type DB interface {
	// SaveDevice inserts a device under its OwnerID
	SaveDevice(ctx context.Context, device *Device) error

	// GetDevice retrieves one of the owner's devices by ID
	GetDevice(ctx context.Context, ownerID, id string) (*Device, error)

	// ListDevices returns the owner's devices, newest first
	ListDevices(ctx context.Context, ownerID string) ([]*Device, error)

	// FindBySerial returns the owner's devices with exactly this serial
	FindBySerial(ctx context.Context, ownerID, serial string) ([]*Device, error)

	// DeleteDevice removes one of the owner's devices
	DeleteDevice(ctx context.Context, ownerID, id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB. Each owner gets a nested
// bucket under "devices", keyed by device ID.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", boltErr(err))
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(devicesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// boltErr tags access-rights faults so callers can tell them apart
func boltErr(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseReadOnly) || errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return err
}

// SaveDevice saves a device to the owner's bucket
func (b *BoltDB) SaveDevice(_ context.Context, device *Device) error {
	if device.OwnerID == "" {
		return fmt.Errorf("device has no owner")
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		owner, err := tx.Bucket([]byte(devicesBucket)).CreateBucketIfNotExists([]byte(device.OwnerID))
		if err != nil {
			return err
		}
		data, err := json.Marshal(device)
		if err != nil {
			return fmt.Errorf("marshaling device: %w", err)
		}
		return owner.Put([]byte(device.ID), data)
	})
	return boltErr(err)
}

// GetDevice retrieves a device by ID
func (b *BoltDB) GetDevice(_ context.Context, ownerID, id string) (*Device, error) {
	var device *Device
	err := b.db.View(func(tx *bbolt.Tx) error {
		owner := tx.Bucket([]byte(devicesBucket)).Bucket([]byte(ownerID))
		if owner == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		data := owner.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &device)
	})
	if err != nil {
		return nil, boltErr(err)
	}
	return device, nil
}

// ListDevices returns all of the owner's devices, newest first
func (b *BoltDB) ListDevices(_ context.Context, ownerID string) ([]*Device, error) {
	return b.scan(ownerID, func(*Device) bool { return true })
}

// FindBySerial returns the owner's devices with an identical serial
func (b *BoltDB) FindBySerial(_ context.Context, ownerID, serial string) ([]*Device, error) {
	return b.scan(ownerID, func(d *Device) bool { return d.DeviceSerial == serial })
}

func (b *BoltDB) scan(ownerID string, keep func(*Device) bool) ([]*Device, error) {
	devices := make([]*Device, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		owner := tx.Bucket([]byte(devicesBucket)).Bucket([]byte(ownerID))
		if owner == nil {
			return nil
		}
		return owner.ForEach(func(k, v []byte) error {
			var device Device
			if err := json.Unmarshal(v, &device); err != nil {
				return fmt.Errorf("unmarshaling device: %w", err)
			}
			if keep(&device) {
				devices = append(devices, &device)
			}
			return nil
		})
	})
	if err != nil {
		return nil, boltErr(err)
	}
	sortNewestFirst(devices)
	return devices, nil
}

// DeleteDevice removes a device from the owner's bucket
func (b *BoltDB) DeleteDevice(_ context.Context, ownerID, id string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		owner := tx.Bucket([]byte(devicesBucket)).Bucket([]byte(ownerID))
		if owner == nil || owner.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return owner.Delete([]byte(id))
	})
	return boltErr(err)
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func sortNewestFirst(devices []*Device) {
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].CreatedAt.After(devices[j].CreatedAt)
	})
}
