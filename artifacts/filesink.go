// Package artifacts stores finished documents and keeps the export ledger.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeptools/gw-docprint/compositor"
	"github.com/zeptools/gw-docprint/pdfs"
)

// FileSink writes artifacts under Dir/{yyyy-mm-dd}/. An existing file of the
// same name is never overwritten: the new one gets a " (n)" suffix.
type FileSink struct {
	Dir string
	Now func() time.Time // nil means time.Now
}

var (
	_ compositor.Sink = (*FileSink)(nil)
	_ Remover         = (*FileSink)(nil)
)

func (s *FileSink) Persist(ctx context.Context, a *compositor.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	dir := filepath.Join(s.Dir, now().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("file sink: %w", err)
	}
	name := filepath.Base(pdfs.NormalizeName(a.Name))
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("file sink: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err = tmp.Write(a.Data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("file sink: write %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("file sink: close %s: %w", name, err)
	}
	for n := 1; n < 1000; n++ {
		target := filepath.Join(dir, numbered(name, n))
		// Link fails when target exists, so concurrent writers never clobber
		if err = os.Link(tmp.Name(), target); err == nil {
			return target, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("file sink: %w", err)
		}
	}
	return "", fmt.Errorf("file sink: too many files named %s", name)
}

// Remove deletes a file returned by Persist. Paths outside Dir are refused.
func (s *FileSink) Remove(_ context.Context, location string) error {
	rel, err := filepath.Rel(s.Dir, location)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return fmt.Errorf("file sink: %s is not an artifact of %s", location, s.Dir)
	}
	if err = os.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file sink: %w", err)
	}
	return nil
}

func numbered(name string, n int) string {
	if n == 1 {
		return name
	}
	base := strings.TrimSuffix(name, pdfs.Extension)
	return fmt.Sprintf("%s (%d)%s", base, n, pdfs.Extension)
}

// Purge removes artifact files older than olderThan and then any day
// directory left empty. It returns the number of files removed.
func (s *FileSink) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	cutoff := now().Add(-olderThan)
	removed := 0
	var dirs []string
	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == s.Dir {
				return fs.SkipAll
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != s.Dir {
				dirs = append(dirs, path)
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), pdfs.Extension) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i]) // fails unless empty
	}
	if removed > 0 {
		log.Printf("[INFO][ARTIFACTS] purged %d files older than %v from %s", removed, olderThan, s.Dir)
	}
	return removed, err
}
