// Package backup copies the database directory to a timestamped sibling.
//
// The copy itself is a plain recursive file copy; what makes it safe is the
// flush that precedes it (a durability point) and the owner lock already
// held by the calling process, which guarantees no other writer mutates the
// directory mid-copy.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pszemraj/localpaste/pkg/log"
	"github.com/pszemraj/localpaste/pkg/types"
)

// Flusher is the durability hook the backup runs before copying.
type Flusher interface {
	Flush() error
}

// Run flushes the store and copies dbPath to <dbPath>.backup.<unix_seconds>.
// Backups within the same second collide; the collision surfaces as an
// already-exists error rather than an overwrite.
func Run(store Flusher, dbPath string) (string, error) {
	if err := store.Flush(); err != nil {
		return "", err
	}

	now := time.Now().Unix()
	if now < 0 {
		return "", types.NewStorageError("backup", fmt.Errorf("system clock reports pre-epoch time"))
	}
	dest := fmt.Sprintf("%s.backup.%d", dbPath, now)

	if _, err := os.Stat(dest); err == nil {
		return "", types.NewStorageError("backup", fmt.Errorf("backup destination %s already exists", dest))
	}

	if err := copyDir(dbPath, dest); err != nil {
		return "", types.NewStorageError("backup", err)
	}
	log.WithComponent("backup").Info().Str("dest", dest).Msg("database backed up")
	return dest, nil
}

func copyDir(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
