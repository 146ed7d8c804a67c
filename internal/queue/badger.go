package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/hyperjump/scout/internal/models"
	"go.uber.org/zap"
)

const (
	entryPrefix       = "queue:"
	sequenceKey       = "queueseq"
	sequenceBandwidth = 100
)

// zapBadgerLogger routes badger's log output to zap.
type zapBadgerLogger struct {
	logger *zap.Logger
}

var _ badger.Logger = (*zapBadgerLogger)(nil)

func (l *zapBadgerLogger) Errorf(msg string, items ...any) {
	l.logger.Error(fmt.Sprintf(msg, items...))
}

func (l *zapBadgerLogger) Warningf(msg string, items ...any) {
	l.logger.Warn(fmt.Sprintf(msg, items...))
}

// badger is chatty at info level, so info goes to debug.
func (l *zapBadgerLogger) Infof(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}

func (l *zapBadgerLogger) Debugf(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}

// BadgerQueue is an append log in an embedded badger database. Keys carry a
// big-endian sequence number so iteration order is enqueue order.
type BadgerQueue struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *zap.Logger
}

// NewBadgerQueue opens (or creates) the database directory at dir.
// An empty dir opens an in-memory database.
func NewBadgerQueue(dir string, logger *zap.Logger) (*BadgerQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create queue directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &zapBadgerLogger{logger: logger.Named("badger")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to get queue sequence: %w", err)
	}
	return &BadgerQueue{db: db, seq: seq, logger: logger}, nil
}

func entryKey(n uint64) []byte {
	buf := make([]byte, len(entryPrefix)+8)
	offset := copy(buf, entryPrefix)
	binary.BigEndian.PutUint64(buf[offset:], n)
	return buf
}

// Enqueue appends entry under the next sequence number.
func (q *BadgerQueue) Enqueue(ctx context.Context, entry models.QueueEntry) error {
	n, err := q.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate queue position: %w", err)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(n), data)
	})
}

// Drain returns all entries in enqueue order. Undecodable values are logged and skipped.
func (q *BadgerQueue) Drain(ctx context.Context) ([]models.QueueEntry, error) {
	entries := []models.QueueEntry{}
	err := q.scan(func(key []byte, entry models.QueueEntry) error {
		entries = append(entries, entry)
		return nil
	})
	return entries, err
}

// Remove deletes every entry for docID.
func (q *BadgerQueue) Remove(ctx context.Context, docID string) error {
	return q.updateWhere(func(e models.QueueEntry) bool { return e.DocID == docID },
		func(txn *badger.Txn, key []byte, _ models.QueueEntry) error {
			return txn.Delete(key)
		})
}

// MarkProcessing rewrites entry with status processing under the same key.
func (q *BadgerQueue) MarkProcessing(ctx context.Context, entry models.QueueEntry) error {
	return q.updateWhere(entry.Same, func(txn *badger.Txn, key []byte, stored models.QueueEntry) error {
		if stored.Status == models.StatusProcessing {
			return nil
		}
		stored.Status = models.StatusProcessing
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal queue entry: %w", err)
		}
		return txn.Set(key, data)
	})
}

// Ack deletes entry.
func (q *BadgerQueue) Ack(ctx context.Context, entry models.QueueEntry) error {
	return q.updateWhere(entry.Same, func(txn *badger.Txn, key []byte, _ models.QueueEntry) error {
		return txn.Delete(key)
	})
}

// updateWhere applies fn to every entry matching match in one transaction.
func (q *BadgerQueue) updateWhere(match func(models.QueueEntry) bool, fn func(txn *badger.Txn, key []byte, entry models.QueueEntry) error) error {
	var (
		keys    [][]byte
		matched []models.QueueEntry
	)
	if err := q.scan(func(key []byte, entry models.QueueEntry) error {
		if match(entry) {
			keys = append(keys, key)
			matched = append(matched, entry)
		}
		return nil
	}); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return q.db.Update(func(txn *badger.Txn) error {
		for i, k := range keys {
			if err := fn(txn, k, matched[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of decodable entries.
func (q *BadgerQueue) Len(ctx context.Context) (int, error) {
	n := 0
	err := q.scan(func([]byte, models.QueueEntry) error {
		n++
		return nil
	})
	return n, err
}

// Close releases the sequence lease and closes the database.
func (q *BadgerQueue) Close() error {
	if err := q.seq.Release(); err != nil {
		q.logger.Warn("Failed to release queue sequence", zap.Error(err))
	}
	return q.db.Close()
}

func (q *BadgerQueue) scan(fn func(key []byte, entry models.QueueEntry) error) error {
	return q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			key := item.KeyCopy(nil)
			var entry models.QueueEntry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				q.logger.Error("Skipping corrupt queue entry", zap.Binary("key", key), zap.Error(err))
				continue
			}
			if err := fn(key, entry); err != nil {
				return err
			}
		}
		return nil
	})
}
