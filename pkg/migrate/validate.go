package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	markUp    = "-- +goose Up"
	markDown  = "-- +goose Down"
	markBegin = "-- +goose StatementBegin"
	markEnd   = "-- +goose StatementEnd"
)

// ValidateDir checks every .sql file in dir and reports all problems at once:
// filename shape, unique versions, an Up section ahead of a Down section, and
// balanced StatementBegin/StatementEnd blocks.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	var errs error
	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name))
			continue
		}
		if prev, ok := seen[m[1]]; ok {
			errs = multierr.Append(errs, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name))
		}
		seen[m[1]] = name

		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read file %q: %w", name, err))
			continue
		}
		errs = multierr.Append(errs, checkAnnotations(name, string(b)))
	}
	return errs
}

func checkAnnotations(name, txt string) error {
	up := strings.Index(txt, markUp)
	down := strings.Index(txt, markDown)
	switch {
	case up < 0:
		return fmt.Errorf("migration %q missing %q", name, markUp)
	case down < 0:
		return fmt.Errorf("migration %q missing %q", name, markDown)
	case down < up:
		return fmt.Errorf("migration %q declares Down before Up", name)
	}

	open := false
	for i, line := range strings.Split(txt, "\n") {
		switch strings.TrimSpace(line) {
		case markBegin:
			if open {
				return fmt.Errorf("migration %q line %d: nested StatementBegin", name, i+1)
			}
			open = true
		case markEnd:
			if !open {
				return fmt.Errorf("migration %q line %d: StatementEnd without StatementBegin", name, i+1)
			}
			open = false
		case markDown:
			if open {
				return fmt.Errorf("migration %q line %d: Up statement block left open", name, i+1)
			}
		}
	}
	if open {
		return fmt.Errorf("migration %q: statement block left open", name)
	}
	return nil
}
