// Package rules maintains the line-delimited business rules appended to the synthesis
// prompt.
package rules

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Load returns the non-blank lines of path. A missing file has no rules.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "rules: open %s", path)
	}
	defer func() { _ = f.Close() }()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}
	return out, nil
}

// Text renders rules the way they are appended to the prompt.
func Text(rules []string) string {
	return strings.Join(rules, "\n")
}

// Add appends one rule.
func Add(path, rule string) ([]string, error) {
	rule = strings.Join(strings.Fields(rule), " ")
	if rule == "" {
		return nil, eris.New("rules: rule text is empty")
	}
	rs, err := Load(path)
	if err != nil {
		return nil, err
	}
	rs = append(rs, rule)
	return rs, save(path, rs)
}

// Remove deletes the rule at 1-based position n.
func Remove(path string, n int) ([]string, error) {
	rs, err := Load(path)
	if err != nil {
		return nil, err
	}
	if n < 1 || n > len(rs) {
		return nil, eris.Errorf("rules: no rule %d (have %d)", n, len(rs))
	}
	rs = append(rs[:n-1], rs[n:]...)
	return rs, save(path, rs)
}

func save(path string, rs []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".rules-*.txt")
	if err != nil {
		return eris.Wrap(err, "rules: create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	content := Text(rs)
	if content != "" {
		content += "\n"
	}
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "rules: write")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "rules: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrap(err, "rules: replace file")
	}
	return nil
}
