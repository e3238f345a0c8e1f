package shipper

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sprintpulse/sprintpulse/internal/compute"
	"github.com/sprintpulse/sprintpulse/internal/connector"
)

// Options selects where a run's results are written.
type Options struct {
	// Path receives the closed-sprint JSON, written atomically. When empty
	// the JSON goes to Out.
	Path string

	// Out is the fallback JSON destination, typically stdout.
	Out io.Writer

	// TextfilePath, when set, receives a Prometheus textfile export.
	TextfilePath string
}

// Shipper writes finished reports to their destinations. Nothing is written
// until the caller has every report of the run.
type Shipper struct {
	opts Options
}

// New returns a Shipper for opts.
func New(opts Options) *Shipper {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Shipper{opts: opts}
}

// Ship writes the closed-sprint export and, when configured, the textfile
// gauges for reports.
func (s *Shipper) Ship(reports []*compute.BoardReport) error {
	export := ToExport(reports)
	data, err := json.Marshal(export)
	if err != nil {
		return fmt.Errorf("shipper: marshal export: %w", err)
	}
	data = append(data, '\n')

	if s.opts.Path != "" {
		if err := WriteFileAtomic(s.opts.Path, data); err != nil {
			return err
		}
		slog.Info("shipper: export written", "path", s.opts.Path, "boards", len(export.Boards()))
	} else if _, err := s.opts.Out.Write(data); err != nil {
		return fmt.Errorf("shipper: write export: %w", err)
	}

	if s.opts.TextfilePath != "" {
		if err := WriteTextfile(s.opts.TextfilePath, VelocityFamilies(reports)); err != nil {
			return err
		}
		slog.Info("shipper: textfile written", "path", s.opts.TextfilePath)
	}
	return nil
}

// ShipCoverage writes coverage results as JSON and, when configured, as
// textfile gauges.
func (s *Shipper) ShipCoverage(results []*connector.Coverage) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("shipper: marshal coverage: %w", err)
	}
	data = append(data, '\n')

	if s.opts.Path != "" {
		if err := WriteFileAtomic(s.opts.Path, data); err != nil {
			return err
		}
	} else if _, err := s.opts.Out.Write(data); err != nil {
		return fmt.Errorf("shipper: write coverage: %w", err)
	}

	if s.opts.TextfilePath != "" {
		return WriteTextfile(s.opts.TextfilePath, CoverageFamilies(results))
	}
	return nil
}

// WriteFileAtomic replaces path with data via a temp file and rename, so
// readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("shipper: create dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("shipper: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("shipper: write %q: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("shipper: sync %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("shipper: close %q: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("shipper: chmod %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("shipper: rename to %q: %w", path, err)
	}
	return nil
}
