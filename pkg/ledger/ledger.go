// Package ledger — append-only, hash-chained JSONL record stores.
//
//   - Two ledgers: Decision and Enforcement, chained independently
//   - Each entry carries prev_hash and entry_hash; entry_hash is the SHA-256
//     of the RFC 8785 canonical form of the entry with entry_hash removed
//   - Append-only; no deletions or mutations; retroactive edits invalidate
//     every subsequent hash
//   - Entries written before hash-chaining was introduced carry no
//     entry_hash field; they are the legacy era and are never verified
package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// GenesisHash is the fixed prev_hash of the first chained entry in a ledger.
const GenesisHash = "genesis"

// Reserved record keys managed by the ledger itself.
const (
	keyPrevHash  = "prev_hash"
	keyEntryHash = "entry_hash"
)

// Kind categorizes the ledger.
type Kind string

const (
	KindDecision    Kind = "DECISION"
	KindEnforcement Kind = "ENFORCEMENT"
)

// Ledger is an append-only, hash-chained JSONL file. Append is the sole
// write path and is serialized so prev_hash linkage is never computed from
// a stale tail.
type Ledger struct {
	mu       sync.Mutex
	kind     Kind
	path     string
	headHash string
	count    int
}

// Open opens (or creates) a ledger file and establishes the chain tail by
// scanning existing entries. Legacy entries without entry_hash do not
// advance the tail.
func Open(kind Kind, path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: create dir %s: %w", dir, err)
		}
	}

	l := &Ledger{kind: kind, path: path, headHash: GenesisHash}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		record, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("ledger: %s line %d: %w", path, line, err)
		}
		l.count++
		if h, ok := record[keyEntryHash].(string); ok {
			l.headHash = h
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ledger: scan %s: %w", path, err)
	}
	return l, nil
}

// Append chains and persists a single record, returning its entry hash.
//
// The record must not carry prev_hash or entry_hash; the ledger owns both.
// The entry is written with one write syscall followed by fsync, so a crash
// mid-append leaves at most one partial trailing line, which Verify reports.
func (l *Ledger) Append(v any) (string, error) {
	record, err := toRecord(v)
	if err != nil {
		return "", fmt.Errorf("ledger: serialize record: %w", err)
	}
	for _, reserved := range []string{keyPrevHash, keyEntryHash} {
		if _, ok := record[reserved]; ok {
			return "", fmt.Errorf("ledger: record must not set %q", reserved)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record[keyPrevHash] = l.headHash
	entryHash, err := chainHash(record)
	if err != nil {
		return "", err
	}
	record[keyEntryHash] = entryHash

	line, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("ledger: marshal entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("ledger: open %s: %w", l.path, err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("ledger: write entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("ledger: sync %s: %w", l.path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("ledger: close %s: %w", l.path, err)
	}

	l.headHash = entryHash
	l.count++
	return entryHash, nil
}

// Head returns the entry hash of the chain tail, or GenesisHash when the
// ledger holds no chained entries.
func (l *Ledger) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.headHash
}

// Length returns the number of records, legacy entries included.
func (l *Ledger) Length() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Kind returns the ledger kind.
func (l *Ledger) Kind() Kind { return l.kind }

// Path returns the backing file path.
func (l *Ledger) Path() string { return l.path }
