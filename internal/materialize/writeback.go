package materialize

import (
	"os"

	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
)

// WriteFileAtomic writes content to path using temp-file + rename + a
// ".bak" shadow copy, so a crash mid-write leaves the original path
// readable with either the old or the new content, never truncated:
// write "<path>.tmp" -> move "<path>" to "<path>.bak" if it exists -> move
// "<path>.tmp" to "<path>" -> delete "<path>.bak". On any failure after the
// temp file is written, the ".bak" is restored and the error surfaced.
func WriteFileAtomic(path string, content []byte, mode os.FileMode) error {
	tmpPath := path + ".tmp"
	bakPath := path + ".bak"

	if err := os.WriteFile(tmpPath, content, mode); err != nil {
		return diaryxerrors.IO(err, "write temp file")
	}

	hadExisting := false
	if _, err := os.Stat(path); err == nil {
		hadExisting = true
		if err := os.Rename(path, bakPath); err != nil {
			os.Remove(tmpPath)
			return diaryxerrors.IO(err, "back up existing file")
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if hadExisting {
			os.Rename(bakPath, path)
		}
		return diaryxerrors.IO(err, "promote temp file")
	}

	if hadExisting {
		os.Remove(bakPath)
	}
	return nil
}

// RecoverBackupIfNeeded restores a ".bak" shadow copy left behind by a
// crash mid-write. If "<path>.bak" exists and "<path>" does not, it is
// restored; if both exist, the stale ".bak" is discarded. Call this once on
// startup for every markdown file under the workspace root.
func RecoverBackupIfNeeded(path string) error {
	bakPath := path + ".bak"
	_, bakErr := os.Stat(bakPath)
	if bakErr != nil {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if err := os.Rename(bakPath, path); err != nil {
			return diaryxerrors.IO(err, "restore backup file")
		}
		return nil
	}
	return os.Remove(bakPath)
}
