package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/tabimport/internal/schema"
)

// transitions lists the phases each phase may move to by user action.
// Importing only leaves through the end of the run.
var transitions = map[Phase][]Phase{
	PhaseLoaded:    {PhaseLoaded, PhaseMapped},
	PhaseMapped:    {PhaseMapped, PhasePreviewed},
	PhasePreviewed: {PhaseMapped, PhasePreviewed, PhaseImporting},
	PhaseImporting: {PhaseCompleted, PhaseCompletedWithErrors},
}

func canTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// session is one file moving through the import flow.
type session struct {
	mu sync.Mutex

	id        string
	table     schema.Table
	file      FileData
	mappings  []ColumnMapping
	phase     Phase
	errs      []ValidationError
	result    *ImportResult
	createdBy Requester
	createdAt time.Time
	updatedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// moveTo changes phase. Caller holds mu.
func (s *session) moveTo(to Phase) error {
	if !canTransition(s.phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.phase, to)
	}
	s.phase = to
	s.updatedAt = time.Now()
	return nil
}

// edited moves the session to Mapped after a change to rows or mappings.
// A session that was never mapped stays Loaded. Caller holds mu.
func (s *session) edited() error {
	switch s.phase {
	case PhaseLoaded:
		s.updatedAt = time.Now()
		return nil
	case PhaseMapped, PhasePreviewed:
		s.errs = nil
		return s.moveTo(PhaseMapped)
	default:
		return fmt.Errorf("%w: cannot edit a session in phase %s", ErrInvalidTransition, s.phase)
	}
}

// SessionView is a read-only snapshot of a session.
type SessionView struct {
	ID               string            `json:"id"`
	TableName        string            `json:"tableName"`
	FileName         string            `json:"fileName"`
	FileType         string            `json:"fileType"`
	FileSize         int64             `json:"fileSize"`
	Headers          []string          `json:"headers"`
	RowCount         int               `json:"rowCount"`
	Mappings         []ColumnMapping   `json:"mappings"`
	Phase            Phase             `json:"phase"`
	ValidationErrors []ValidationError `json:"validationErrors,omitempty"`
	UnmappedHeaders  int               `json:"unmappedHeaders"`
	MissingRequired  []string          `json:"missingRequired,omitempty"`
	CanImport        bool              `json:"canImport"`
	Result           *ImportResult     `json:"result,omitempty"`
	CreatedBy        Requester         `json:"createdBy"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// view snapshots the session. Caller holds mu.
func (s *session) view() SessionView {
	v := SessionView{
		ID:               s.id,
		TableName:        s.table.Name,
		FileName:         s.file.FileName,
		FileType:         s.file.FileType,
		FileSize:         s.file.FileSize,
		Headers:          append([]string(nil), s.file.Headers...),
		RowCount:         len(s.file.Rows),
		Mappings:         cloneMappings(s.mappings),
		Phase:            s.phase,
		ValidationErrors: append([]ValidationError(nil), s.errs...),
		CreatedBy:        s.createdBy,
		CreatedAt:        s.createdAt,
		UpdatedAt:        s.updatedAt,
	}

	for _, m := range s.mappings {
		if !m.Mapped() {
			v.UnmappedHeaders++
		}
	}
	for _, c := range MissingRequired(s.mappings, s.table) {
		v.MissingRequired = append(v.MissingRequired, c.Name)
	}
	v.CanImport = s.phase == PhasePreviewed && len(s.errs) == 0 && len(v.MissingRequired) == 0

	if s.result != nil {
		r := *s.result
		v.Result = &r
	}
	return v
}

func cloneMappings(ms []ColumnMapping) []ColumnMapping {
	out := make([]ColumnMapping, len(ms))
	for i, m := range ms {
		if m.TableColumn != nil {
			col := *m.TableColumn
			m.TableColumn = &col
		}
		out[i] = m
	}
	return out
}

func cloneRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// normalizeRows pads or truncates every row to width cells.
func normalizeRows(rows [][]any, width int) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, width)
		copy(row, r)
		out[i] = row
	}
	return out
}
