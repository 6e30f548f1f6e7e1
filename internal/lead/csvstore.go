package lead

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
)

// CSVStore keeps leads in a local CSV file. Every WriteCells rewrites the file through a
// temp file and rename, so a failed write leaves the previous contents intact.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) ReadAll(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *CSVStore) read() ([][]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "lead csv: open %s", s.path)
	}
	defer func() { _ = f.Close() }()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "lead csv: read %s", s.path)
	}
	return rows, nil
}

func (s *CSVStore) WriteCells(ctx context.Context, cells []Cell) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateCells(cells); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read()
	if err != nil {
		return err
	}
	rows = applyCells(rows, cells)

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".leads-*.csv")
	if err != nil {
		return eris.Wrap(err, "lead csv: create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	cw := csv.NewWriter(tmp)
	if err := cw.WriteAll(rows); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "lead csv: write")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "lead csv: close temp file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return eris.Wrap(err, "lead csv: replace file")
	}
	return nil
}
