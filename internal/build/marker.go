package build

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
)

// Marker layout:
//
//	BUILD_DIR/
//	  .stamps/
//	    <package>/
//	      fetch.json      # one file per completed stage
//	      unpack.json     # records the working directory
//	      ...
//	  <package>/          # unpacked sources
const markerDir = ".stamps"

// marker records a successfully completed stage.
type marker struct {
	Stage   string    `json:"stage"`
	Time    time.Time `json:"time"`
	WorkDir string    `json:"workdir,omitempty"`
}

// Markers stores completion markers under Root.
type Markers struct {
	Root string
}

// MarkersFor returns the marker store inside buildDir.
func MarkersFor(buildDir string) Markers {
	return Markers{Root: filepath.Join(buildDir, markerDir)}
}

func (m Markers) path(pkg string, s Stage) string {
	return filepath.Join(m.Root, pkg, s.String()+".json")
}

// load reads the marker for pkg's stage s. A missing marker yields an
// error satisfying errors.Is(err, fs.ErrNotExist).
func (m Markers) load(pkg string, s Stage) (*marker, error) {
	data, err := os.ReadFile(m.path(pkg, s))
	if err != nil {
		return nil, err
	}
	var mk marker
	if err := json.Unmarshal(data, &mk); err != nil {
		return nil, err
	}
	return &mk, nil
}

// Done reports whether pkg has completed stage s.
func (m Markers) Done(pkg string, s Stage) bool {
	_, err := m.load(pkg, s)
	return err == nil
}

// save atomically writes the marker for pkg's stage s.
func (m Markers) save(pkg string, s Stage, mk *marker) error {
	if err := os.MkdirAll(filepath.Join(m.Root, pkg), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(mk, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(m.path(pkg, s), data, 0o644)
}

// ClearFrom removes the markers of s and every later stage of pkg.
func (m Markers) ClearFrom(pkg string, s Stage) error {
	for _, st := range Stages {
		if st < s {
			continue
		}
		if err := os.Remove(m.path(pkg, st)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Completed returns the stages pkg has markers for, in order.
func (m Markers) Completed(pkg string) []Stage {
	var done []Stage
	for _, st := range Stages {
		if m.Done(pkg, st) {
			done = append(done, st)
		}
	}
	return done
}
