package upgrade

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"vendhub/internal/types"
)

// Archiver writes compaction checkpoints: the entries a compaction pass
// retired, serialized as zstd-compressed JSON lines. Checkpoints are
// write-once audit artifacts; nothing in the platform reads them back.
type Archiver struct {
	dir string
}

// NewArchiver creates an Archiver writing checkpoints under dir. The
// directory is created on first use.
func NewArchiver(dir string) *Archiver {
	return &Archiver{dir: dir}
}

// Checkpoint writes one compaction checkpoint file named
// <vendorID>-<unix-timestamp>.jsonl.zst, one entry per line.
func (a *Archiver) Checkpoint(vendorID string, entries []*types.UpgradeEntry, at time.Time) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	name := fmt.Sprintf("%s-%d.jsonl.zst", vendorID, at.Unix())
	f, err := os.Create(filepath.Join(a.dir, name))
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}

	w := json.NewEncoder(enc)
	for _, entry := range entries {
		if err := w.Encode(entry); err != nil {
			enc.Close()
			return fmt.Errorf("encode checkpoint entry: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush checkpoint: %w", err)
	}
	return f.Sync()
}
