// Package snapshot persists the scheduler state between restarts.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/mod/semver"

	"github.com/kalambet/recallbot/internal/scheduler"
)

const FileName = "state.json"

var (
	ErrNotFound            = errors.New("snapshot not found")
	ErrIncompatibleVersion = errors.New("snapshot version is incompatible")
)

// Path returns the snapshot location inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Save writes st to path atomically: the record goes to a temporary file in
// the same directory which is then renamed over the old snapshot.
func Save(fs afero.Fs, path string, st scheduler.State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp := filepath.Join(dir, "."+FileName+"."+uuid.NewString()+".tmp")
	if err := afero.WriteFile(fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		fs.Remove(tmp)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot at path. Fields missing from the file keep their
// defaults. A snapshot whose major version differs from scheduler.Version
// is rejected with ErrIncompatibleVersion.
func Load(fs afero.Fs, path string) (scheduler.State, error) {
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return scheduler.State{}, ErrNotFound
	}
	if err != nil {
		return scheduler.State{}, fmt.Errorf("reading snapshot: %w", err)
	}

	var head struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return scheduler.State{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	if !Compatible(head.Version) {
		return scheduler.State{}, fmt.Errorf("%w: %q, want major of %q",
			ErrIncompatibleVersion, head.Version, scheduler.Version)
	}

	st := scheduler.DefaultState(scheduler.DefaultJobsPerHour)
	if err := json.Unmarshal(data, &st); err != nil {
		return scheduler.State{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return st, nil
}

// Compatible reports whether version shares the major version of the
// current scheduler state schema.
func Compatible(version string) bool {
	major := semver.Major("v" + version)
	return major != "" && major == semver.Major("v"+scheduler.Version)
}
