package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketDevices = []byte("devices")

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDevices)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func normalizeIEEE(ieee string) string {
	return strings.ToLower(strings.TrimPrefix(strings.ReplaceAll(ieee, ":", ""), "0x"))
}

func putDevice(b *bolt.Bucket, dev *Device) error {
	dev.IEEEAddress = normalizeIEEE(dev.IEEEAddress)
	data, err := json.Marshal(dev)
	if err != nil {
		return err
	}
	return b.Put([]byte(dev.IEEEAddress), data)
}

func (s *BoltStore) SaveDevice(dev *Device) error {
	if dev.IEEEAddress == "" {
		return fmt.Errorf("save device: empty ieee address")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putDevice(tx.Bucket(bucketDevices), dev)
	})
}

func (s *BoltStore) GetDevice(ieee string) (*Device, error) {
	var dev Device
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDevices).Get([]byte(normalizeIEEE(ieee)))
		if data == nil {
			return fmt.Errorf("device %s: %w", ieee, ErrNotFound)
		}
		return json.Unmarshal(data, &dev)
	})
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *BoltStore) UpdateDevice(ieee string, fn func(dev *Device) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		key := normalizeIEEE(ieee)
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("device %s: %w", ieee, ErrNotFound)
		}
		var dev Device
		if err := json.Unmarshal(data, &dev); err != nil {
			return err
		}
		if err := fn(&dev); err != nil {
			return err
		}
		dev.IEEEAddress = key
		return putDevice(b, &dev)
	})
}

func (s *BoltStore) DeleteDevice(ieee string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		key := []byte(normalizeIEEE(ieee))
		if b.Get(key) == nil {
			return fmt.Errorf("device %s: %w", ieee, ErrNotFound)
		}
		return b.Delete(key)
	})
}

// ListDevices returns every device ordered by IEEE address.
func (s *BoltStore) ListDevices() ([]*Device, error) {
	var devices []*Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		devices = make([]*Device, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var dev Device
			if err := json.Unmarshal(v, &dev); err != nil {
				return fmt.Errorf("decode device %s: %w", k, err)
			}
			devices = append(devices, &dev)
			return nil
		})
	})
	sort.Slice(devices, func(i, j int) bool { return devices[i].IEEEAddress < devices[j].IEEEAddress })
	return devices, err
}

// FindDevice matches the friendly name first, then the IEEE address.
func (s *BoltStore) FindDevice(nameOrIEEE string) (*Device, error) {
	devices, err := s.ListDevices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.FriendlyName != "" && dev.FriendlyName == nameOrIEEE {
			return dev, nil
		}
	}
	key := normalizeIEEE(nameOrIEEE)
	for _, dev := range devices {
		if dev.IEEEAddress == key {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("device %q: %w", nameOrIEEE, ErrNotFound)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
