package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"
)

const bucketName = "receipts"

// ErrNotFound is returned when a receipt does not exist.
var ErrNotFound = errors.New("receipt not found")

// DB defines the interface for receipt persistence
type DB interface {
	// SaveReceipt saves a receipt under its owner's phone number
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by owner and ID
	GetReceipt(phoneNumber, id string) (*Receipt, error)

	// ListReceipts returns all receipts of a user, oldest first
	ListReceipts(phoneNumber string) ([]*Receipt, error)

	// DeleteReceipt removes a receipt
	DeleteReceipt(phoneNumber, id string) error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB prepares the receipts bucket on an open BoltDB handle
func NewBoltDB(db *bbolt.DB) (*BoltDB, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating receipts bucket: %w", err)
	}
	return &BoltDB{db: db}, nil
}

func receiptKey(phoneNumber, id string) []byte {
	return []byte(phoneNumber + "/" + id)
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	if receipt.PhoneNumber == "" || receipt.ID == "" {
		return fmt.Errorf("receipt needs a phone number and an id")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		return bucket.Put(receiptKey(receipt.PhoneNumber, receipt.ID), data)
	})
}

// GetReceipt retrieves a receipt by owner and ID
func (b *BoltDB) GetReceipt(phoneNumber, id string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get(receiptKey(phoneNumber, id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns all receipts stored for a phone number
func (b *BoltDB) ListReceipts(phoneNumber string) ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	prefix := []byte(phoneNumber + "/")
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt %s: %w", k, err)
			}
			receipts = append(receipts, &receipt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(receipts, func(i, j int) bool {
		return receipts[i].CreatedAt.Before(receipts[j].CreatedAt)
	})
	return receipts, nil
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(phoneNumber, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.Delete(receiptKey(phoneNumber, id))
	})
}
