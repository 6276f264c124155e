package destinations

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"plotarchiver/internal/logging"
)

// Registry loads destination directories from a list file.
type Registry struct {
	logger *slog.Logger
}

// NewRegistry constructs a registry that logs through logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logging.NewComponentLogger(logger, "destinations")}
}

// Refresh reads listPath and returns the valid destination directories in
// file order, as absolute paths with duplicates removed. Blank lines and lines
// starting with '#' are ignored.
func (r *Registry) Refresh(listPath string) []string {
	file, err := os.Open(listPath)
	if err != nil {
		logging.ErrorWithContext(r.logger, "destination list unreadable", "destination_list_unreadable",
			logging.String("list_path", listPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.destinations_file and its permissions"),
		)
		return nil
	}
	defer file.Close()

	var (
		result []string
		seen   = make(map[string]struct{})
	)
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimRight(scanner.Text(), "\r\n")
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		dir, ok := r.validate(trimmed, line)
		if !ok {
			continue
		}
		if _, dup := seen[dir]; dup {
			continue
		}
		seen[dir] = struct{}{}
		result = append(result, dir)
	}
	if err := scanner.Err(); err != nil {
		logging.ErrorWithContext(r.logger, "destination list read failed", "destination_list_unreadable",
			logging.String("list_path", listPath),
			logging.Error(err),
		)
	}
	return result
}

func (r *Registry) validate(entry string, line int) (string, bool) {
	info, err := os.Stat(entry)
	if err != nil {
		logging.ErrorWithContext(r.logger, "destination does not exist", "destination_invalid",
			logging.String("destination", entry),
			logging.Int("line", line),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "mount the drive or remove the line from the destination list"),
		)
		return "", false
	}
	if !info.IsDir() {
		logging.ErrorWithContext(r.logger, "destination is not a directory", "destination_invalid",
			logging.String("destination", entry),
			logging.Int("line", line),
			logging.String(logging.FieldErrorHint, "list directories only, one per line"),
		)
		return "", false
	}
	abs, err := filepath.Abs(entry)
	if err != nil {
		logging.ErrorWithContext(r.logger, "destination path unresolvable", "destination_invalid",
			logging.String("destination", entry),
			logging.Error(err),
		)
		return "", false
	}
	return abs, true
}
