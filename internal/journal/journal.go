// Package journal keeps one record per finished training epoch in a badger
// database, so a resumed run continues the epoch numbering.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "epoch/"

type Record struct {
	Epoch          int       `json:"epoch"`
	TrainingCost   float64   `json:"training_cost"`
	ValidationCost float64   `json:"validation_cost"`
	Samples        int       `json:"samples"`
	Checkpoint     string    `json:"checkpoint"`
	Finished       time.Time `json:"finished"`
}

type Journal struct {
	db *badger.DB
}

func Open(dir string) (*Journal, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return open(opts)
}

// OpenInMemory returns a journal that is lost on Close.
func OpenInMemory() (*Journal, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Journal, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// zero padding keeps the keys in epoch order
func recordKey(epoch int) []byte {
	return []byte(fmt.Sprintf("%s%010d", keyPrefix, epoch))
}

func (j *Journal) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.Epoch), data)
	})
}

// Last returns the record with the highest epoch.
func (j *Journal) Last() (Record, bool, error) {
	var rec Record
	var found bool
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration has to seek past the last possible key
		it.Seek(append([]byte(keyPrefix), 0xFF))
		if !it.ValidForPrefix(opts.Prefix) {
			return nil
		}
		found = true
		return it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, found, err
}

// Records returns all records in epoch order.
func (j *Journal) Records() ([]Record, error) {
	var result []Record
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			result = append(result, rec)
		}
		return nil
	})
	return result, err
}
