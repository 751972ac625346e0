package archive

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// logFile is the append-only human log inside the archive directory.
const logFile = "_log.txt"

// OpenRunLog creates a dual-output run logger: text to stderr for the
// operator, text into the archive's _log.txt for the record. The returned
// closer flushes the file handle.
func OpenRunLog(archiveDir string, level slog.Level) (*slog.Logger, io.Closer, error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(filepath.Join(archiveDir, logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// Degrade to stderr-only rather than failing the run.
		logger := slog.New(stderrHandler)
		logger.Warn("failed to open archive log, using stderr only", "error", err)
		return logger, io.NopCloser(nil), nil
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler)), file, nil
}

// NewTestLog returns a logger writing to the given writer, for tests.
func NewTestLog(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
