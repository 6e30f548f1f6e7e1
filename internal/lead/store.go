package lead

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// Cell addresses one value. Row and Col are zero-based; row 0 is the header.
type Cell struct {
	Row   int
	Col   int
	Value string
}

// Store is the remote lead-source collaborator.
type Store interface {
	// ReadAll returns every row, header first. Rows may be shorter than the header.
	ReadAll(ctx context.Context) ([][]string, error)
	// WriteCells applies all cells in one batched call, or none of them.
	WriteCells(ctx context.Context, cells []Cell) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	rows   [][]string
	writes int

	// FailWrites, when set, is returned by every WriteCells call.
	FailWrites error
}

func NewMemoryStore(rows [][]string) *MemoryStore {
	return &MemoryStore{rows: cloneRows(rows)}
}

func (m *MemoryStore) ReadAll(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRows(m.rows), nil
}

func (m *MemoryStore) WriteCells(ctx context.Context, cells []Cell) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	if err := validateCells(cells); err != nil {
		return err
	}
	m.rows = applyCells(m.rows, cells)
	m.writes++
	return nil
}

// Rows returns a copy of the current contents.
func (m *MemoryStore) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRows(m.rows)
}

// Writes counts successful WriteCells calls.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func validateCells(cells []Cell) error {
	for _, c := range cells {
		if c.Row < 0 || c.Col < 0 {
			return eris.Errorf("lead: invalid cell address row=%d col=%d", c.Row, c.Col)
		}
	}
	return nil
}

func applyCells(rows [][]string, cells []Cell) [][]string {
	for _, c := range cells {
		for len(rows) <= c.Row {
			rows = append(rows, nil)
		}
		row := rows[c.Row]
		for len(row) <= c.Col {
			row = append(row, "")
		}
		row[c.Col] = c.Value
		rows[c.Row] = row
	}
	return rows
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
