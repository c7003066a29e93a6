package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/canonicalize"
)

// EntryStatus is the per-entry verification result.
type EntryStatus string

const (
	// StatusLegacy marks an entry written before hash-chaining was
	// introduced. Legacy entries are unchecked, not tampered; the chain is
	// defined only over entries that carry entry_hash.
	StatusLegacy EntryStatus = "LEGACY"
	StatusOK     EntryStatus = "OK"
	StatusFailed EntryStatus = "FAILED"
)

// IntegrityError describes a single verification failure. It is reported,
// never auto-repaired.
type IntegrityError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation at entry %d: %s", e.Index, e.Message)
}

// Entry is a verified view of one ledger record.
type Entry struct {
	Index  int
	Record map[string]any
	Raw    string
	Status EntryStatus
	Detail string
}

// Report is the outcome of an offline chain verification.
type Report struct {
	Valid            bool
	TotalEntries     int
	HashedEntries    int
	FirstBrokenIndex int // -1 when the chain is intact
	Errors           []IntegrityError
	Entries          []Entry
}

// Verify walks a ledger file, recomputing each chained hash from the stored
// bytes, and reports the first index where recomputed and stored disagree.
// A missing file verifies as an empty, valid ledger.
func Verify(path string) (Report, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Report{Valid: true, FirstBrokenIndex: -1}, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return VerifyStream(f)
}

// VerifyStream verifies a newline-delimited record stream.
func VerifyStream(r io.Reader) (Report, error) {
	report := Report{Valid: true, FirstBrokenIndex: -1}
	prevHash := GenesisHash

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		idx := report.TotalEntries
		report.TotalEntries++

		entry := Entry{Index: idx, Raw: string(raw), Status: StatusOK}

		record, err := decodeRecord(raw)
		if err != nil {
			report.fail(&entry, fmt.Sprintf("invalid JSON: %v", err))
			report.Entries = append(report.Entries, entry)
			continue
		}
		entry.Record = record

		storedHash, hashed := record[keyEntryHash].(string)
		if !hashed {
			entry.Status = StatusLegacy
			report.Entries = append(report.Entries, entry)
			continue
		}
		report.HashedEntries++

		storedPrev, _ := record[keyPrevHash].(string)
		if storedPrev != prevHash {
			report.fail(&entry, fmt.Sprintf("prev_hash mismatch: expected %q, found %q", prevHash, storedPrev))
		} else {
			expected, err := recomputeHash(record)
			if err != nil {
				report.fail(&entry, fmt.Sprintf("recompute failed: %v", err))
			} else if expected != storedHash {
				report.fail(&entry, "entry_hash mismatch: content altered")
			}
		}

		prevHash = storedHash
		report.Entries = append(report.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("ledger: scan stream: %w", err)
	}
	return report, nil
}

func (r *Report) fail(entry *Entry, msg string) {
	entry.Status = StatusFailed
	entry.Detail = msg
	r.Valid = false
	if r.FirstBrokenIndex < 0 {
		r.FirstBrokenIndex = entry.Index
	}
	r.Errors = append(r.Errors, IntegrityError{Index: entry.Index, Message: msg})
}

// recomputeHash rebuilds the expected entry hash from a stored record: the
// entry_hash field is stripped, prev_hash stays as stored, and the rest is
// canonicalized exactly as on the write side.
func recomputeHash(record map[string]any) (string, error) {
	payload := make(map[string]any, len(record))
	for k, v := range record {
		if k == keyEntryHash {
			continue
		}
		payload[k] = v
	}
	return chainHash(payload)
}

func chainHash(payload map[string]any) (string, error) {
	canonical, err := canonicalize.JCS(payload)
	if err != nil {
		return "", fmt.Errorf("ledger: canonicalize entry: %w", err)
	}
	return canonicalize.HashBytes(canonical), nil
}

// decodeRecord parses a record preserving exact number text, so a record
// round-trips through verification byte-identically.
func decodeRecord(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	return record, nil
}

// toRecord converts an arbitrary value into the map form the ledger chains,
// going through JSON so struct tags decide field names.
func toRecord(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		clone := make(map[string]any, len(m))
		for k, val := range m {
			clone[k] = val
		}
		return clone, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}
