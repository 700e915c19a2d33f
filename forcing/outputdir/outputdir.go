// Package outputdir manages versioned output folders of repeated runs.
//
// With the ActiveLink style, each call to Generate creates base/output_NNNN with the
// next free counter and points the base/output_active symlink at it. Re-running a
// simulation therefore never overwrites a previous run, and output_active always names
// the latest one. Folders left behind without a link (e.g. by a crash between mkdir and
// the link update) are taken into account when picking the next counter.
package outputdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// ActiveLinkName is the symlink pointing at the latest output folder.
	ActiveLinkName = "output_active"
	// RunIDFile is written into each new folder and holds a UUIDv7 for the run.
	RunIDFile  = ".run_id"
	maxCounter = 9999
)

// Style selects how Generate treats existing output.
type Style int

const (
	// ActiveLink keeps previous runs and links the newest as output_active.
	ActiveLink Style = iota
	// RemovePreexisting deletes base and recreates it empty.
	RemovePreexisting
)

var folderPattern = regexp.MustCompile(`^output_(\d{4})$`)

// Generate prepares an output folder under base and returns its path.
func Generate(base string, style Style) (string, error) {
	switch style {
	case ActiveLink:
		return nextVersion(base)
	case RemovePreexisting:
		if err := os.RemoveAll(base); err != nil {
			return "", fmt.Errorf("removing %s: %w", base, err)
		}
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", fmt.Errorf("creating %s: %w", base, err)
		}
		return base, nil
	}
	return "", fmt.Errorf("unknown output style %d", style)
}

// nextVersion creates base/output_NNNN with NNNN one above the highest counter found
// in the active link or among existing folders.
func nextVersion(base string) (string, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", base, err)
	}
	highest, err := highestCounter(base)
	if err != nil {
		return "", err
	}
	next := highest + 1
	if next > maxCounter {
		return "", fmt.Errorf("%s already holds %d output folders", base, maxCounter)
	}

	name := fmt.Sprintf("output_%04d", next)
	dir := filepath.Join(base, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := writeRunID(dir); err != nil {
		return "", err
	}
	if err := relink(base, name); err != nil {
		return "", err
	}
	logrus.Infof("output folder %s", dir)
	return dir, nil
}

func highestCounter(base string) (int, error) {
	highest := 0
	link := filepath.Join(base, ActiveLinkName)
	if fi, err := os.Lstat(link); err == nil {
		if fi.Mode()&os.ModeSymlink == 0 {
			return 0, fmt.Errorf("%s exists and is not a symlink", link)
		}
		target, err := os.Readlink(link)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", link, err)
		}
		n, ok := counterOf(filepath.Base(target))
		if !ok {
			return 0, fmt.Errorf("%s points at %q, not an output_NNNN folder", link, target)
		}
		highest = n
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("checking %s: %w", link, err)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", base, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, ok := counterOf(e.Name()); ok && n > highest {
			highest = n
		}
	}
	return highest, nil
}

func counterOf(name string) (int, bool) {
	m := folderPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

// relink points output_active at name, replacing the old link in one rename.
func relink(base, name string) error {
	link := filepath.Join(base, ActiveLinkName)
	tmp := link + ".tmp"
	_ = os.Remove(tmp)
	if err := os.Symlink(name, tmp); err != nil {
		return fmt.Errorf("linking %s: %w", link, err)
	}
	if err := os.Rename(tmp, link); err != nil {
		return fmt.Errorf("linking %s: %w", link, err)
	}
	return nil
}

func writeRunID(dir string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating run id: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, RunIDFile), []byte(id.String()+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing run id: %w", err)
	}
	return nil
}

// RunID returns the run identifier stored in an output folder.
func RunID(dir string) (uuid.UUID, error) {
	data, err := os.ReadFile(filepath.Join(dir, RunIDFile))
	if err != nil {
		return uuid.Nil, fmt.Errorf("reading run id: %w", err)
	}
	id, err := uuid.ParseBytes(trimNewline(data))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing run id: %w", err)
	}
	return id, nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
