package planner

import (
	"github.com/Ning0612/drivemirror/internal/core/diff"
	"github.com/Ning0612/drivemirror/internal/domain"
)

// Planner reconciles a remote listing against local state
type Planner interface {
	// Plan returns the files that must be downloaded, in listing order
	Plan(remote []domain.RemoteEntry, local domain.LocalFileSet, metadata domain.MetadataRecord) *domain.DownloadPlan

	// Assess returns the freshness of every remote entry, in listing order
	Assess(remote []domain.RemoteEntry, local domain.LocalFileSet, metadata domain.MetadataRecord) []Assessment
}

// Assessment is the reconciliation verdict for one remote entry
type Assessment struct {
	Entry      domain.RemoteEntry
	Present    bool
	LastSynced string
	Result     diff.Result
}

// DefaultPlanner uses the timestamp comparer
type DefaultPlanner struct {
	Differ diff.Comparer
}

// NewDefaultPlanner creates a new planner with default components
func NewDefaultPlanner() *DefaultPlanner {
	return &DefaultPlanner{
		Differ: diff.NewTimestampComparer(),
	}
}

// Plan implements the Planner interface.
// Files never leave the plan for being old, and local files absent from the
// listing are never referenced: there is no deletion.
func (p *DefaultPlanner) Plan(remote []domain.RemoteEntry, local domain.LocalFileSet, metadata domain.MetadataRecord) *domain.DownloadPlan {
	plan := domain.NewDownloadPlan()

	for _, a := range p.Assess(remote, local, metadata) {
		if !a.Result.NeedsTransfer() {
			continue
		}
		plan.Add(domain.PlannedFile{
			ID:     a.Entry.ID,
			Name:   a.Entry.Name,
			Source: a.Entry,
			Reason: a.Result.String(),
		})
	}

	return plan
}

// Assess implements the Planner interface
func (p *DefaultPlanner) Assess(remote []domain.RemoteEntry, local domain.LocalFileSet, metadata domain.MetadataRecord) []Assessment {
	entries := dedupeByName(remote)
	assessments := make([]Assessment, 0, len(entries))

	for _, entry := range entries {
		present := local.Has(entry.Name)
		lastSynced := metadata.LastSynced(entry.Name)
		assessments = append(assessments, Assessment{
			Entry:      entry,
			Present:    present,
			LastSynced: lastSynced,
			Result:     p.Differ.Compare(entry, present, lastSynced),
		})
	}

	return assessments
}

// dedupeByName collapses entries sharing a name.
// The last occurrence wins, keeping the position of the first.
func dedupeByName(remote []domain.RemoteEntry) []domain.RemoteEntry {
	out := make([]domain.RemoteEntry, 0, len(remote))
	seen := make(map[string]int, len(remote))

	for _, entry := range remote {
		if i, ok := seen[entry.Name]; ok {
			out[i] = entry
			continue
		}
		seen[entry.Name] = len(out)
		out = append(out, entry)
	}

	return out
}
