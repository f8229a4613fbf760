package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "sessions"

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Store defines the interface for session persistence
type Store interface {
	// GetSession returns the user's session, creating it on first contact
	GetSession(phoneNumber string) (*Session, error)

	// UpdateUserState sets the flow state and merges patch into the metadata.
	// A nil value in patch removes the key.
	UpdateUserState(phoneNumber string, state State, patch map[string]any) error

	// SetMenuContext records which menu the next reply is read against
	SetMenuContext(phoneNumber string, ctx MenuContext) error

	// SetPlan changes the user's subscription plan
	SetPlan(phoneNumber string, plan Plan) error
}

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// NewBoltStore prepares the sessions bucket on an open BoltDB handle
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating sessions bucket: %w", err)
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

func get(bucket *bbolt.Bucket, phoneNumber string) (*Session, error) {
	data := bucket.Get([]byte(phoneNumber))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, phoneNumber)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	if s.MenuContext == "" {
		s.MenuContext = MenuContextMain
	}
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	return &s, nil
}

func put(bucket *bbolt.Bucket, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	return bucket.Put([]byte(s.PhoneNumber), data)
}

// GetSession retrieves a session, creating a free idle one if none exists
func (b *BoltStore) GetSession(phoneNumber string) (*Session, error) {
	if strings.TrimSpace(phoneNumber) == "" {
		return nil, fmt.Errorf("phone number is required")
	}
	var s *Session
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		var err error
		s, err = get(bucket, phoneNumber)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		s = newSession(phoneNumber, b.now())
		return put(bucket, s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// modify applies fn to an existing session inside one transaction
func (b *BoltStore) modify(phoneNumber string, fn func(*Session)) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		s, err := get(bucket, phoneNumber)
		if errors.Is(err, ErrNotFound) {
			s = newSession(phoneNumber, b.now())
		} else if err != nil {
			return err
		}
		fn(s)
		s.UpdatedAt = b.now()
		return put(bucket, s)
	})
}

// UpdateUserState updates flow state and metadata
func (b *BoltStore) UpdateUserState(phoneNumber string, state State, patch map[string]any) error {
	err := b.modify(phoneNumber, func(s *Session) {
		if state != "" {
			s.State = state
		}
		for k, v := range patch {
			if v == nil {
				delete(s.Metadata, k)
				continue
			}
			s.Metadata[k] = v
		}
	})
	if err != nil {
		return fmt.Errorf("updating session state: %w", err)
	}
	return nil
}

// SetMenuContext stores the active menu context
func (b *BoltStore) SetMenuContext(phoneNumber string, ctx MenuContext) error {
	err := b.modify(phoneNumber, func(s *Session) {
		s.MenuContext = ctx
	})
	if err != nil {
		return fmt.Errorf("setting menu context: %w", err)
	}
	return nil
}

// SetPlan stores the subscription plan
func (b *BoltStore) SetPlan(phoneNumber string, plan Plan) error {
	if !plan.Valid() {
		return fmt.Errorf("unknown plan %q", plan)
	}
	err := b.modify(phoneNumber, func(s *Session) {
		s.Plan = plan
		if plan == PlanPro && s.State == StateAwaitingUpgrade {
			s.State = StateIdle
		}
	})
	if err != nil {
		return fmt.Errorf("setting plan: %w", err)
	}
	return nil
}
