package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
)

// storedMessage is the internal structure persisted in Badger
type storedMessage struct {
	ID           string    `json:"id"`
	Body         []byte    `json:"body"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	VisibleAt    time.Time `json:"visible_at"`
	ReceiveCount int       `json:"receive_count"`
}

// BadgerManager implements a persistent queue using BadgerDB.
//
// Storage layout:
//
//	queue:{name}:msg:{id}                       -> message JSON
//	queue:{name}:index:{visibleAt:020d}:{id}    -> empty
//
// The zero-padded nanosecond timestamp in the index key makes byte
// ordering equal to time ordering, so Receive scans the index prefix
// and stops at the first future entry.
type BadgerManager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
	dropHandler       func(body []byte)
}

// NewBadgerManager creates a new Badger-backed queue manager
func NewBadgerManager(db *badger.DB, queueName string, visibilityTimeout time.Duration, maxReceive int) (*BadgerManager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &BadgerManager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
	}, nil
}

// SetDropHandler registers a callback for messages removed after
// spending their delivery budget, crash loops where the process died
// mid-handler included. Runs outside the storage transaction. Call
// before the first Receive.
func (m *BadgerManager) SetDropHandler(fn func(body []byte)) {
	m.dropHandler = fn
}

// Enqueue appends a message to the queue, optionally delayed
func (m *BadgerManager) Enqueue(ctx context.Context, body []byte, delay time.Duration) (string, error) {
	id := uuid.New().String()

	now := time.Now()
	qMsg := storedMessage{
		ID:           id,
		Body:         body,
		EnqueuedAt:   now,
		VisibleAt:    now.Add(delay),
		ReceiveCount: 0,
	}

	data, err := json.Marshal(qMsg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal queue message: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(m.msgKey(id), data); err != nil {
			return err
		}
		return txn.Set(m.indexKey(qMsg.VisibleAt, id), []byte{})
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue message: %w", err)
	}
	return id, nil
}

// Receive pulls the next visible message and hides it for the
// visibility timeout. Messages past maxReceive deliveries are dropped
// to break poison pill loops.
func (m *BadgerManager) Receive(ctx context.Context) (*interfaces.QueueMessageEnvelope, error) {
	var qMsg storedMessage
	var msgID string
	var oldIndexKey []byte
	var dropped [][]byte

	err := m.db.Update(func(txn *badger.Txn) error {
		dropped = dropped[:0]
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		found := false

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)

			ts, id, err := m.parseIndexKey(key)
			if err != nil {
				continue // Skip invalid keys
			}

			if ts.After(now) {
				// Index keys sort by timestamp; nothing beyond this
				// point is visible yet.
				break
			}

			msgKey := m.msgKey(id)
			itemMsg, err := txn.Get(msgKey)
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Orphaned index entry, clean it up
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := itemMsg.Value(func(val []byte) error {
				return json.Unmarshal(val, &qMsg)
			}); err != nil {
				return err
			}

			if qMsg.ReceiveCount >= m.maxReceive {
				// Delivery budget spent. Drop the message.
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(msgKey); err != nil {
					return err
				}
				dropped = append(dropped, qMsg.Body)
				continue
			}

			found = true
			msgID = id
			oldIndexKey = key
			break
		}

		if !found {
			return models.ErrNoMessage
		}

		qMsg.ReceiveCount++
		qMsg.VisibleAt = time.Now().Add(m.visibilityTimeout)

		newData, err := json.Marshal(qMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(msgID), newData); err != nil {
			return err
		}

		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(m.indexKey(qMsg.VisibleAt, msgID), []byte{})
	})

	// Drops are reported once the transaction has committed; ErrNoMessage
	// can still carry drops when the only visible messages were spent.
	if err == nil || errors.Is(err, models.ErrNoMessage) {
		if m.dropHandler != nil {
			for _, body := range dropped {
				m.dropHandler(body)
			}
		}
	}

	if err != nil {
		return nil, err
	}

	return &interfaces.QueueMessageEnvelope{
		ID:       msgID,
		Body:     qMsg.Body,
		Received: qMsg.ReceiveCount,
	}, nil
}

// Delete acknowledges a message permanently
func (m *BadgerManager) Delete(ctx context.Context, messageID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		msgKey := m.msgKey(messageID)
		item, err := txn.Get(msgKey)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil // Already deleted
			}
			return err
		}

		var currentMsg storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &currentMsg)
		}); err != nil {
			return err
		}

		idxKey := m.indexKey(currentMsg.VisibleAt, messageID)
		if err := txn.Delete(idxKey); err != nil && err != badger.ErrKeyNotFound {
			return err
		}

		return txn.Delete(msgKey)
	})
}

// Extend moves a message's visibility deadline. A failed handler calls
// this with the retry delay so the message reappears for another
// attempt instead of waiting out the full visibility timeout.
func (m *BadgerManager) Extend(ctx context.Context, messageID string, duration time.Duration) error {
	return m.db.Update(func(txn *badger.Txn) error {
		msgKey := m.msgKey(messageID)
		item, err := txn.Get(msgKey)
		if err != nil {
			return err
		}

		var qMsg storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &qMsg)
		}); err != nil {
			return err
		}

		oldVisibleAt := qMsg.VisibleAt
		qMsg.VisibleAt = time.Now().Add(duration)

		newData, err := json.Marshal(qMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(msgKey, newData); err != nil {
			return err
		}

		if err := txn.Delete(m.indexKey(oldVisibleAt, messageID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}

		return txn.Set(m.indexKey(qMsg.VisibleAt, messageID), []byte{})
	})
}

// Depth counts visible and in-flight messages
func (m *BadgerManager) Depth(ctx context.Context) (int, int, error) {
	var visible, inflight int

	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ts, _, err := m.parseIndexKey(it.Item().Key())
			if err != nil {
				continue
			}
			if ts.After(now) {
				inflight++
			} else {
				visible++
			}
		}
		return nil
	})

	return visible, inflight, err
}

// Close closes the queue manager (no-op, the DB is managed externally)
func (m *BadgerManager) Close() error {
	return nil
}

// Helpers

func (m *BadgerManager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

func (m *BadgerManager) indexKey(visibleAt time.Time, id string) []byte {
	ts := visibleAt.UnixNano()
	// Zero pad to 20 digits to ensure string sorting works like number sorting
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", m.queueName, ts, id))
}

func (m *BadgerManager) parseIndexKey(key []byte) (time.Time, string, error) {
	prefixStr := fmt.Sprintf("queue:%s:index:", m.queueName)
	if len(key) <= len(prefixStr) {
		return time.Time{}, "", fmt.Errorf("invalid key length")
	}

	suffix := string(key[len(prefixStr):])
	// Suffix is "{20-digit-ts}:{id}"

	if len(suffix) < 21 { // 20 digits + 1 colon
		return time.Time{}, "", fmt.Errorf("invalid suffix length")
	}

	tsStr := suffix[:20]
	id := suffix[21:]

	var ts int64
	_, err := fmt.Sscanf(tsStr, "%d", &ts)
	if err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), id, nil
}
