package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var deliveriesBucket = []byte("deliveries")

// Per-recipient history is trimmed to this many records.
const maxDeliveriesPerRecipient = 100

type DeliveryKind string

const (
	KindText        DeliveryKind = "text"
	KindInteractive DeliveryKind = "interactive"
)

type DeliveryStatus string

const (
	StatusSent   DeliveryStatus = "sent"
	StatusFailed DeliveryStatus = "failed"
)

// Delivery is the outcome of one outbound send.
type Delivery struct {
	ID                string         `json:"id"`
	Recipient         string         `json:"recipient"`
	Kind              DeliveryKind   `json:"kind"`
	Status            DeliveryStatus `json:"status"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Error             string         `json:"error,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

type Store interface {
	SaveDelivery(d Delivery) error
	ListDeliveries(recipient string) ([]Delivery, error)
	Close() error
}

// BoltStore keeps deliveries in one nested bucket per recipient, keyed by
// creation time so cursor order is chronological.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(deliveriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating deliveries bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// SaveDelivery stores d, filling ID and CreatedAt when unset.
func (s *BoltStore) SaveDelivery(d Delivery) error {
	if d.Recipient == "" {
		return fmt.Errorf("delivery without recipient")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(deliveriesBucket).CreateBucketIfNotExists([]byte(d.Recipient))
		if err != nil {
			return err
		}
		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		if err := b.Put(deliveryKey(d), data); err != nil {
			return err
		}
		return trim(b, maxDeliveriesPerRecipient)
	})
}

// ListDeliveries returns the recipient's deliveries, oldest first.
func (s *BoltStore) ListDeliveries(recipient string) ([]Delivery, error) {
	var out []Delivery
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(deliveriesBucket).Bucket([]byte(recipient))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var d Delivery
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func deliveryKey(d Delivery) []byte {
	var buf bytes.Buffer
	buf.WriteString(d.CreatedAt.UTC().Format("20060102T150405.000000000"))
	buf.WriteByte('/')
	buf.WriteString(d.ID)
	return buf.Bytes()
}

func trim(b *bolt.Bucket, limit int) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	if len(keys) <= limit {
		return nil
	}
	for _, k := range keys[:len(keys)-limit] {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
