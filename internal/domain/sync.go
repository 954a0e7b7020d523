package domain

// PlannedFile is one entry of a download plan
type PlannedFile struct {
	ID   string
	Name string

	// Source is the remote entry that caused the file to be planned
	Source RemoteEntry

	// Reason explains why the file needs a transfer
	Reason string
}

// DownloadPlan is the ordered set of files requiring transfer in one run.
// Iteration order is the order in which names were first seen in the remote listing.
type DownloadPlan struct {
	files []PlannedFile
	index map[string]int
}

// NewDownloadPlan creates an empty plan
func NewDownloadPlan() *DownloadPlan {
	return &DownloadPlan{index: make(map[string]int)}
}

// Add appends a file to the plan; adding an existing name replaces it in place
func (p *DownloadPlan) Add(f PlannedFile) {
	if i, ok := p.index[f.Name]; ok {
		p.files[i] = f
		return
	}
	p.index[f.Name] = len(p.files)
	p.files = append(p.files, f)
}

// Get returns the planned file with the given name
func (p *DownloadPlan) Get(name string) (PlannedFile, bool) {
	i, ok := p.index[name]
	if !ok {
		return PlannedFile{}, false
	}
	return p.files[i], true
}

// Files returns the planned files in plan order
func (p *DownloadPlan) Files() []PlannedFile {
	out := make([]PlannedFile, len(p.files))
	copy(out, p.files)
	return out
}

// Names returns the planned file names in plan order
func (p *DownloadPlan) Names() []string {
	names := make([]string, len(p.files))
	for i, f := range p.files {
		names[i] = f.Name
	}
	return names
}

// Len returns the number of planned files
func (p *DownloadPlan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.files)
}

// IsEmpty reports whether nothing needs to be transferred
func (p *DownloadPlan) IsEmpty() bool {
	return p.Len() == 0
}

// TotalBytes sums the reported sizes of planned files
func (p *DownloadPlan) TotalBytes() int64 {
	var total int64
	for _, f := range p.files {
		total += f.Source.Size
	}
	return total
}

// RunStatus summarises the outcome of a sync run
type RunStatus string

const (
	RunSuccess       RunStatus = "success"
	RunPartial       RunStatus = "partial"
	RunFailed        RunStatus = "failed"
	RunNothingToSync RunStatus = "nothing_to_sync"
	RunUpToDate      RunStatus = "up_to_date"
)

// IsValid checks if the status is a known value
func (s RunStatus) IsValid() bool {
	switch s {
	case RunSuccess, RunPartial, RunFailed, RunNothingToSync, RunUpToDate:
		return true
	}
	return false
}

// RunResult describes one list→plan→execute→persist cycle
type RunResult struct {
	RunID       string
	FolderID    string
	TargetDir   string
	RemoteCount int
	Plan        *DownloadPlan
	Downloaded  []string
	Failed      map[string]error
	Bytes       int64
	Status      RunStatus
}
