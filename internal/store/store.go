// Package store is the bet-record persistence adapter behind the narrow
// contract spec.md §4.C describes: append, scan, and a pure winner
// predicate. The concrete file layout is an implementation detail the core
// does not depend on (spec.md §1).
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/fedepagnotta/tp0-distribuidos/internal/bet"
)

// ErrStoreWrite wraps any failure durably committing a batch (spec.md §7
// StoreWriteError).
var ErrStoreWrite = errors.New("store: write failed")

// Store is the contract the session handler consumes (spec.md §4.C). It
// implies the concurrency discipline of spec.md §4.G/§5: no Scan may
// observe a partial Append, and Appends are serialized with respect to
// each other.
type Store interface {
	// Append durably commits bets as one atomic batch. A later Scan in the
	// same process is guaranteed to observe it.
	Append(bets []bet.Bet) error
	// Scan returns a stable snapshot of every stored bet, in the order
	// they were appended.
	Scan() ([]bet.Bet, error)
	// IsWinner is a pure predicate on a single bet.
	IsWinner(b bet.Bet) bool
}

// WinningNumber is the constant the file-backed adapter's IsWinner checks
// against, per spec.md §4.C's "implementation typically: number ==
// WINNING_NUMBER for some constant the adapter owns".
const WinningNumber = 7574

// FileStore is a filesystem-backed append-on-write store with bulk read,
// matching spec.md §1's external-adapter assumption. A single
// sync.RWMutex enforces spec.md §4.G: Append holds the write lock
// (store_write_lock), Scan holds the read lock (store_read_lock) for the
// duration of its read, and the two never overlap.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore returns a store backed by the CSV file at path. The file is
// created on first Append if it does not already exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append serializes bets as CSV rows (agency_id, first_name, last_name,
// document, birthdate, number) and appends them to the backing file under
// the write lock. Failure is reported as a wrapped ErrStoreWrite.
func (f *FileStore) Append(bets []bet.Bet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening store: %v", ErrStoreWrite, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	for _, b := range bets {
		record := []string{
			strconv.Itoa(b.AgencyID),
			b.FirstName,
			b.LastName,
			b.Document,
			b.Birthdate,
			strconv.Itoa(b.Number),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("%w: writing record: %v", ErrStoreWrite, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flushing: %v", ErrStoreWrite, err)
	}
	return nil
}

// Scan reads every stored bet back under the read lock, returning them in
// append order. A store that has never been written to returns an empty,
// nil-error result.
func (f *FileStore) Scan() ([]bet.Bet, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: scanning: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = 6

	var bets []bet.Bet
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: scanning: %w", err)
		}
		agencyID, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("store: scanning: invalid agency_id %q: %w", record[0], err)
		}
		number, err := strconv.Atoi(record[5])
		if err != nil {
			return nil, fmt.Errorf("store: scanning: invalid number %q: %w", record[5], err)
		}
		bets = append(bets, bet.Bet{
			AgencyID:  agencyID,
			FirstName: record[1],
			LastName:  record[2],
			Document:  record[3],
			Birthdate: record[4],
			Number:    number,
		})
	}
	return bets, nil
}

// IsWinner reports whether b's number matches WinningNumber.
func (f *FileStore) IsWinner(b bet.Bet) bool {
	return b.Number == WinningNumber
}
