package replay

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Index is a rebuildable SQLite index over the decision ledger, for fast
// lookup by correlation id or identity without rescanning the JSONL file.
// The ledger stays the source of truth; the index is derived and can be
// dropped and rebuilt at any time.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) an index database at the given path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("replay: open index %s: %w", path, err)
	}
	return NewIndex(db)
}

// NewIndex wraps an existing database handle and ensures the schema.
func NewIndex(db *sql.DB) (*Index, error) {
	ix := &Index{db: db}
	if err := ix.migrate(); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *Index) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS decisions (
        ledger_index INTEGER PRIMARY KEY,
        correlation_id TEXT NOT NULL,
        identity_label TEXT,
        requested_permission TEXT,
        system_state TEXT,
        decision TEXT,
        reason TEXT,
        timestamp TEXT,
        chain_status TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_decisions_correlation ON decisions (correlation_id);
    CREATE INDEX IF NOT EXISTS idx_decisions_identity ON decisions (identity_label);`
	_, err := ix.db.ExecContext(context.Background(), query)
	return err
}

// Rebuild replaces the index contents with the given ledger views. The whole
// rebuild runs in one transaction so readers never see a half-built index.
func (ix *Index) Rebuild(ctx context.Context, views []DecisionView) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replay: begin index rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM decisions`); err != nil {
		return fmt.Errorf("replay: clear index: %w", err)
	}

	insert := `INSERT INTO decisions (
        ledger_index, correlation_id, identity_label, requested_permission,
        system_state, decision, reason, timestamp, chain_status
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, v := range views {
		_, err := tx.ExecContext(ctx, insert,
			v.Index, v.Record.CorrelationID, v.Record.IdentityLabel,
			v.Record.Permission, v.Record.SystemState, v.Record.Decision,
			v.Record.Reason, v.Record.Timestamp, string(v.Status),
		)
		if err != nil {
			return fmt.Errorf("replay: index decision %d: %w", v.Index, err)
		}
	}
	return tx.Commit()
}

// Summary is one indexed decision row.
type Summary struct {
	LedgerIndex   int
	CorrelationID string
	IdentityLabel string
	Permission    string
	SystemState   string
	Decision      string
	Reason        string
	Timestamp     string
	ChainStatus   string
}

const summaryColumns = `ledger_index, correlation_id, identity_label,
        requested_permission, system_state, decision, reason, timestamp, chain_status`

// ByCorrelationID looks up a single decision by its correlation id.
func (ix *Index) ByCorrelationID(ctx context.Context, correlationID string) (Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM decisions WHERE correlation_id = ?`
	row := ix.db.QueryRowContext(ctx, query, correlationID)
	s, err := scanSummary(row.Scan)
	if err == sql.ErrNoRows {
		return Summary{}, fmt.Errorf("replay: no indexed decision with correlation id %q", correlationID)
	}
	return s, err
}

// ByIdentity lists decisions for one identity, newest ledger entries first.
func (ix *Index) ByIdentity(ctx context.Context, identityLabel string, limit int) ([]Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM decisions
        WHERE identity_label = ? ORDER BY ledger_index DESC LIMIT ?`
	return ix.queryMany(ctx, query, identityLabel, limit)
}

// Recent lists the most recent decisions across all identities.
func (ix *Index) Recent(ctx context.Context, limit int) ([]Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM decisions
        ORDER BY ledger_index DESC LIMIT ?`
	return ix.queryMany(ctx, query, limit)
}

// Close releases the underlying database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

func (ix *Index) queryMany(ctx context.Context, query string, args ...any) ([]Summary, error) {
	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Summary
	for rows.Next() {
		s, err := scanSummary(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanSummary(scan func(...any) error) (Summary, error) {
	var (
		s          Summary
		identity   sql.NullString
		permission sql.NullString
		state      sql.NullString
		decision   sql.NullString
		reason     sql.NullString
		timestamp  sql.NullString
	)
	err := scan(&s.LedgerIndex, &s.CorrelationID, &identity, &permission,
		&state, &decision, &reason, &timestamp, &s.ChainStatus)
	if err != nil {
		return Summary{}, err
	}
	s.IdentityLabel = identity.String
	s.Permission = permission.String
	s.SystemState = state.String
	s.Decision = decision.String
	s.Reason = reason.String
	s.Timestamp = timestamp.String
	return s, nil
}
