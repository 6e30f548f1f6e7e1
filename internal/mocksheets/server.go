// Package mocksheets implements the slice of the Google Sheets v4 values API the lead
// store uses, backed by in-memory worksheets.
package mocksheets

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
}

// Server serves values.get and values:batchUpdate for any number of spreadsheets.
type Server struct {
	mu    sync.Mutex
	calls []Call
	// books maps spreadsheet id to worksheet title to rows.
	books map[string]map[string][][]string

	failures []int

	// snapshotDir, when set, receives <spreadsheet>/<worksheet>.csv after every write.
	snapshotDir string
}

func New() *Server {
	return &Server{books: make(map[string]map[string][][]string)}
}

// PersistTo makes the server write a CSV snapshot of each worksheet after every update.
func (s *Server) PersistTo(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotDir = dir
}

// SetRows replaces a worksheet's contents.
func (s *Server) SetRows(spreadsheetID, worksheet string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheet(spreadsheetID, worksheet, true)
	s.books[spreadsheetID][worksheet] = cloneRows(rows)
}

// LoadCSV seeds a worksheet from a CSV file.
func (s *Server) LoadCSV(spreadsheetID, worksheet, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	s.SetRows(spreadsheetID, worksheet, rows)
	return nil
}

// Rows returns a copy of a worksheet's contents.
func (s *Server) Rows(spreadsheetID, worksheet string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRows(s.sheet(spreadsheetID, worksheet, false))
}

// FailNext makes the next len(codes) requests fail with the given HTTP status codes.
func (s *Server) FailNext(codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, codes...)
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v4/spreadsheets/", s.handleSpreadsheets)
	return mux
}

func (s *Server) handleSpreadsheets(w http.ResponseWriter, r *http.Request) {
	if code, failed := s.record(r); failed {
		writeError(w, code, "injected failure")
		return
	}

	// /v4/spreadsheets/{id}/values/{range}
	// /v4/spreadsheets/{id}/values:batchUpdate
	rest := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/")
	id, op, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	case op == "values:batchUpdate":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleBatchUpdate(w, r, id)
	case strings.HasPrefix(op, "values/"):
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleGet(w, id, strings.TrimPrefix(op, "values/"))
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) record(r *http.Request) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
	if len(s.failures) == 0 {
		return 0, false
	}
	code := s.failures[0]
	s.failures = s.failures[1:]
	return code, true
}

type valueRange struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension,omitempty"`
	Values         [][]string `json:"values,omitempty"`
}

func (s *Server) handleGet(w http.ResponseWriter, id, rng string) {
	title, _, err := parseRange(rng)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	rows := s.sheet(id, title, false)
	if rows == nil {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unable to parse range: %s", rng))
		return
	}
	out := trimRows(rows)
	s.mu.Unlock()

	writeJSON(w, valueRange{Range: rng, MajorDimension: "ROWS", Values: out})
}

type batchUpdateRequest struct {
	ValueInputOption string       `json:"valueInputOption"`
	Data             []valueRange `json:"data"`
}

type batchUpdateResponse struct {
	SpreadsheetID     string `json:"spreadsheetId"`
	TotalUpdatedCells int    `json:"totalUpdatedCells"`
}

func (s *Server) handleBatchUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req batchUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	type target struct {
		title    string
		row, col int
		values   [][]string
	}
	targets := make([]target, 0, len(req.Data))
	for _, d := range req.Data {
		title, cell, err := parseRange(d.Range)
		if err != nil || cell == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unable to parse range: %s", d.Range))
			return
		}
		targets = append(targets, target{title: title, row: cell[0], col: cell[1], values: d.Values})
	}

	s.mu.Lock()
	for _, t := range targets {
		if s.sheet(id, t.title, false) == nil {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unable to parse range: %s", t.title))
			return
		}
	}
	updated := 0
	touched := map[string]bool{}
	for _, t := range targets {
		rows := s.books[id][t.title]
		for i, vals := range t.values {
			for j, v := range vals {
				rows = setCell(rows, t.row+i, t.col+j, v)
				updated++
			}
		}
		s.books[id][t.title] = rows
		touched[t.title] = true
	}
	dir := s.snapshotDir
	snapshots := map[string][][]string{}
	if dir != "" {
		for title := range touched {
			snapshots[title] = cloneRows(s.books[id][title])
		}
	}
	s.mu.Unlock()

	for title, rows := range snapshots {
		if err := writeSnapshot(filepath.Join(dir, id, title+".csv"), rows); err != nil {
			writeError(w, http.StatusInternalServerError, "write snapshot")
			return
		}
	}
	writeJSON(w, batchUpdateResponse{SpreadsheetID: id, TotalUpdatedCells: updated})
}

// sheet returns a worksheet, creating the spreadsheet and worksheet when create is set.
// Callers hold s.mu.
func (s *Server) sheet(id, title string, create bool) [][]string {
	book, ok := s.books[id]
	if !ok {
		if !create {
			return nil
		}
		book = map[string][][]string{}
		s.books[id] = book
	}
	rows, ok := book[title]
	if !ok {
		if !create {
			return nil
		}
		rows = [][]string{}
		book[title] = rows
	}
	if rows == nil {
		rows = [][]string{}
	}
	return rows
}

// parseRange splits "'Title'!C5" into its title and zero-based (row, col). cell is nil
// when the range names a whole worksheet.
func parseRange(rng string) (string, []int, error) {
	title, ref, hasRef := strings.Cut(rng, "!")
	if strings.HasPrefix(title, "'") && strings.HasSuffix(title, "'") && len(title) >= 2 {
		title = strings.ReplaceAll(title[1:len(title)-1], "''", "'")
	}
	if title == "" {
		return "", nil, fmt.Errorf("empty sheet title in %q", rng)
	}
	if !hasRef {
		return title, nil, nil
	}
	ref, _, _ = strings.Cut(ref, ":")
	col, i := 0, 0
	for ; i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z'; i++ {
		col = col*26 + int(ref[i]-'A'+1)
	}
	row := 0
	for j := i; j < len(ref); j++ {
		if ref[j] < '0' || ref[j] > '9' {
			return "", nil, fmt.Errorf("invalid cell %q", ref)
		}
		row = row*10 + int(ref[j]-'0')
	}
	if col == 0 || row == 0 {
		return "", nil, fmt.Errorf("invalid cell %q", ref)
	}
	return title, []int{row - 1, col - 1}, nil
}

func setCell(rows [][]string, row, col int, v string) [][]string {
	for len(rows) <= row {
		rows = append(rows, nil)
	}
	for len(rows[row]) <= col {
		rows[row] = append(rows[row], "")
	}
	rows[row][col] = v
	return rows
}

// trimRows drops trailing empty cells and rows the way the real API does.
func trimRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		n := len(r)
		for n > 0 && r[n-1] == "" {
			n--
		}
		out = append(out, append([]string{}, r[:n]...))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func cloneRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

func writeSnapshot(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type errorDetail struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type errorBody struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Status  string        `json:"status"`
	Errors  []errorDetail `json:"errors"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	reason := "badRequest"
	switch {
	case code == http.StatusTooManyRequests:
		reason = "rateLimitExceeded"
	case code >= 500:
		reason = "backendError"
	case code == http.StatusNotFound:
		reason = "notFound"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]errorBody{"error": {
		Code:    code,
		Message: msg,
		Status:  strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_")),
		Errors:  []errorDetail{{Reason: reason, Message: msg}},
	}})
}
