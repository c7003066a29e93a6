// Package replay provides read-only review of recorded decisions and their
// enforcement events. It never re-executes anything: replay reads the ledgers
// as written, verifies the chains, and explains what happened and why.
package replay

import (
	"encoding/json"
	"fmt"

	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/audit"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/enforce"
	"github.com/vrj4wpgbx4-sys/Sovereignty-Control-System/pkg/ledger"
)

// DecisionView is one decision ledger entry with its chain status.
type DecisionView struct {
	Index  int
	Status ledger.EntryStatus
	Detail string
	Record audit.Record
}

// EnforcementView is one enforcement ledger entry with its chain status.
type EnforcementView struct {
	Index  int
	Status ledger.EntryStatus
	Detail string
	Record enforce.Record
}

// Correlation ties a decision to every enforcement event it triggered.
type Correlation struct {
	Decision DecisionView
	Events   []EnforcementView
}

// Reviewer reads the decision and enforcement ledgers for review.
type Reviewer struct {
	decisionPath    string
	enforcementPath string
}

// NewReviewer targets the two ledger files. Either may be absent; an absent
// ledger reviews as empty.
func NewReviewer(decisionPath, enforcementPath string) *Reviewer {
	return &Reviewer{decisionPath: decisionPath, enforcementPath: enforcementPath}
}

// Decisions returns every decision entry in ledger order, each tagged with
// its chain status, alongside the full verification report.
func (r *Reviewer) Decisions() ([]DecisionView, ledger.Report, error) {
	report, err := ledger.Verify(r.decisionPath)
	if err != nil {
		return nil, ledger.Report{}, fmt.Errorf("replay: verify decision ledger: %w", err)
	}

	views := make([]DecisionView, 0, len(report.Entries))
	for _, entry := range report.Entries {
		view := DecisionView{Index: entry.Index, Status: entry.Status, Detail: entry.Detail}
		if entry.Record != nil {
			if err := json.Unmarshal([]byte(entry.Raw), &view.Record); err != nil {
				view.Detail = fmt.Sprintf("undecodable decision record: %v", err)
			}
		}
		views = append(views, view)
	}
	return views, report, nil
}

// Explain returns the decision at the given ledger index.
func (r *Reviewer) Explain(index int) (DecisionView, error) {
	views, _, err := r.Decisions()
	if err != nil {
		return DecisionView{}, err
	}
	if index < 0 || index >= len(views) {
		return DecisionView{}, fmt.Errorf("replay: no decision at index %d (ledger has %d entries)", index, len(views))
	}
	return views[index], nil
}

// Correlate finds the decision with the given correlation id and every
// enforcement event that references it.
func (r *Reviewer) Correlate(correlationID string) (Correlation, error) {
	views, _, err := r.Decisions()
	if err != nil {
		return Correlation{}, err
	}

	var correlation Correlation
	found := false
	for _, view := range views {
		if view.Record.CorrelationID == correlationID {
			correlation.Decision = view
			found = true
			break
		}
	}
	if !found {
		return Correlation{}, fmt.Errorf("replay: no decision with correlation id %q", correlationID)
	}

	events, err := r.enforcementEvents()
	if err != nil {
		return Correlation{}, err
	}
	for _, event := range events {
		if event.Record.DecisionRef == correlationID {
			correlation.Events = append(correlation.Events, event)
		}
	}
	return correlation, nil
}

func (r *Reviewer) enforcementEvents() ([]EnforcementView, error) {
	report, err := ledger.Verify(r.enforcementPath)
	if err != nil {
		return nil, fmt.Errorf("replay: verify enforcement ledger: %w", err)
	}

	views := make([]EnforcementView, 0, len(report.Entries))
	for _, entry := range report.Entries {
		view := EnforcementView{Index: entry.Index, Status: entry.Status, Detail: entry.Detail}
		if entry.Record != nil {
			if err := json.Unmarshal([]byte(entry.Raw), &view.Record); err != nil {
				view.Detail = fmt.Sprintf("undecodable enforcement record: %v", err)
			}
		}
		views = append(views, view)
	}
	return views, nil
}
