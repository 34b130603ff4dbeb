package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.dotmd/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".dotmd", "logs")
	}
	return filepath.Join(home, ".dotmd", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// IndexLogPath returns the dedicated log path for `dotmd index` runs, kept
// separate from the general CLI log since an index run can emit a lot of
// per-batch embedding diagnostics a user wouldn't want mixed into search logs.
func IndexLogPath() string {
	return filepath.Join(DefaultLogDir(), "index.log")
}

// LogSource represents the source of logs to view.
type LogSource string

const (
	// LogSourceGo is the general CLI logs (default).
	LogSourceGo LogSource = "go"
	// LogSourceIndex is the dedicated `dotmd index` run log.
	LogSourceIndex LogSource = "index"
	// LogSourceAll combines all log sources.
	LogSourceAll LogSource = "all"
)

// FindLogFile attempts to find the log file for viewing.
// Priority:
// 1. Explicit path (if provided)
// 2. ~/.dotmd/logs/server.log (global)
//
// Returns an error if no log file is found.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	// Try global path
	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found. Server may not have run with --debug yet.\nExpected at: %s", globalPath)
}

// FindLogFileBySource finds log files based on the source type.
// Returns a list of log file paths that exist.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
	// Explicit path takes precedence
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return []string{explicit}, nil
		}
		return nil, fmt.Errorf("log file not found: %s", explicit)
	}

	var paths []string
	var checked []string

	switch source {
	case LogSourceGo:
		goPath := DefaultLogPath()
		checked = append(checked, goPath)
		if _, err := os.Stat(goPath); err == nil {
			paths = append(paths, goPath)
		}

	case LogSourceIndex:
		indexPath := IndexLogPath()
		checked = append(checked, indexPath)
		if _, err := os.Stat(indexPath); err == nil {
			paths = append(paths, indexPath)
		}

	case LogSourceAll:
		goPath := DefaultLogPath()
		indexPath := IndexLogPath()
		checked = append(checked, goPath, indexPath)

		if _, err := os.Stat(goPath); err == nil {
			paths = append(paths, goPath)
		}
		if _, err := os.Stat(indexPath); err == nil {
			paths = append(paths, indexPath)
		}

	default:
		return nil, fmt.Errorf("unknown log source: %s (use: go, index, all)", source)
	}

	if len(paths) == 0 {
		hint := getLogHint(source)
		return nil, fmt.Errorf("no log files found for source '%s'.\nChecked: %v\n\n%s", source, checked, hint)
	}

	return paths, nil
}

// ParseLogSource parses a string into a LogSource.
func ParseLogSource(s string) LogSource {
	switch s {
	case "index":
		return LogSourceIndex
	case "all":
		return LogSourceAll
	default:
		return LogSourceGo
	}
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	dir := DefaultLogDir()
	return os.MkdirAll(dir, 0o755)
}

// getLogHint returns a helpful message on how to generate logs for the given source.
func getLogHint(source LogSource) string {
	switch source {
	case LogSourceGo:
		return "To generate CLI logs:\n  dotmd --debug search \"<query>\""
	case LogSourceIndex:
		return "To generate index run logs:\n  dotmd --debug index"
	case LogSourceAll:
		return "To generate logs:\n  dotmd --debug index\n  dotmd --debug search \"<query>\""
	default:
		return ""
	}
}
