package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/fernhill/rookery/pkg/log"
	"github.com/fernhill/rookery/pkg/metrics"
	"github.com/fernhill/rookery/pkg/naming"
	"github.com/fernhill/rookery/pkg/types"
)

const (
	// JobsDir is the subdirectory of a container root that holds children.
	JobsDir = "jobs"
	// ConfigFile is the host-owned configuration blob of a child.
	ConfigFile = "config.xml"
)

// Factory constructs a child from its on-disk directory. The host owns
// the configuration format; the store only hands over the path.
type Factory func(parent types.Group, dir string) (types.Child, error)

// Store persists the children of a container on disk and loads them
// back, relocating directories when the mangler's output changes.
type Store struct {
	mangler naming.Mangler
	factory Factory
	logger  zerolog.Logger

	// Load progress counters. Cumulative across reloads, so the total
	// can over-report after a reload; within a single load both are
	// non-decreasing.
	jobTotal       atomic.Int64
	jobEncountered atomic.Int64
}

// New builds a store around a mangler and a child factory.
func New(m naming.Mangler, f Factory) *Store {
	return &Store{
		mangler: m,
		factory: f,
		logger:  log.WithComponent("store"),
	}
}

// Progress reports how many child directories have been discovered and
// how many children finished loading.
func (s *Store) Progress() (total, encountered int64) {
	return s.jobTotal.Load(), s.jobEncountered.Load()
}

// Load reads every child under the container's jobs directory and
// returns a fresh map keyed by business name. Individual children that
// fail to load are skipped with a warning; the load itself only fails
// when the jobs directory is unreadable. Callers install the returned
// map atomically so concurrent readers keep a consistent view.
func (s *Store) Load(g types.Group) (map[string]types.Child, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ChildLoadDuration)

	jobsDir := filepath.Join(g.RootDir(), JobsDir)

	entries, err := os.ReadDir(jobsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]types.Child{}, nil
		}
		return nil, fmt.Errorf("failed to read jobs directory: %w", err)
	}

	children := make(map[string]types.Child)
	seen := make(map[string]string) // lower-cased name -> directory

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		s.jobTotal.Add(1)

		dirName := entry.Name()
		childDir := filepath.Join(jobsDir, dirName)

		if _, err := os.Stat(filepath.Join(childDir, ConfigFile)); err != nil {
			s.logger.Warn().Str("dir", dirName).Msg("skipping child without readable configuration")
			metrics.ChildrenSkipped.Inc()
			continue
		}

		child, err := s.factory(g, childDir)
		if err != nil {
			s.logger.Warn().Err(err).Str("dir", dirName).Msg("skipping unloadable child")
			metrics.ChildrenSkipped.Inc()
			continue
		}

		name, legacy := s.resolveName(g, child, childDir, dirName)

		childDir, dirName, err = s.relocate(g, child, jobsDir, childDir, dirName)
		if err != nil {
			s.logger.Warn().Err(err).Str("dir", dirName).Str("name", name).
				Msg("skipping child: relocation failed")
			metrics.ChildrenSkipped.Inc()
			continue
		}

		if err := child.OnLoad(g, dirName); err != nil {
			s.logger.Warn().Err(err).Str("name", name).Msg("skipping child: load hook failed")
			metrics.ChildrenSkipped.Inc()
			continue
		}

		if legacy {
			// The legacy path attached a recovered name; persist it now.
			if err := child.Save(); err != nil {
				s.logger.Warn().Err(err).Str("name", name).Msg("failed to save upgraded child")
			}
			if err := naming.WriteSidecar(childDir, name); err != nil {
				s.logger.Warn().Err(err).Str("name", name).Msg("failed to write name sidecar")
			}
		}

		lower := strings.ToLower(name)
		if prev, dup := seen[lower]; dup {
			s.logger.Warn().Str("name", name).Str("dir", dirName).Str("existing", prev).
				Msg("skipping child: duplicate business name")
			metrics.ChildrenSkipped.Inc()
			continue
		}
		seen[lower] = dirName

		children[name] = child
		s.jobEncountered.Add(1)
		metrics.ChildrenLoaded.Inc()
	}

	return children, nil
}

// resolveName determines the intended business name of the child,
// preferring the child's own configuration, then the sidecar, then the
// legacy inference from the directory name.
func (s *Store) resolveName(g types.Group, child types.Child, childDir, dirName string) (string, bool) {
	if name, ok := s.mangler.ItemName(g, child); ok {
		return name, false
	}
	if name, ok := naming.ReadSidecar(childDir); ok {
		child.SetName(name)
		return name, false
	}
	naming.RecordLegacyName(s.mangler, g, child, dirName)
	return child.Name(), true
}

// relocate moves the child directory when its current name differs from
// the mangler's output. A pre-existing target fails only this child.
func (s *Store) relocate(g types.Group, child types.Child, jobsDir, childDir, dirName string) (string, string, error) {
	want, ok := s.mangler.DirName(g, child)
	if !ok || want == dirName {
		return childDir, dirName, nil
	}

	target := filepath.Join(jobsDir, want)
	if _, err := os.Stat(target); err == nil {
		return childDir, dirName, types.NewInvariantError(
			"directory %q already exists; cannot relocate %q", want, dirName)
	}
	if err := os.Rename(childDir, target); err != nil {
		return childDir, dirName, fmt.Errorf("failed to relocate child directory: %w", err)
	}

	s.logger.Info().Str("from", dirName).Str("to", want).Str("container", g.FullName()).
		Msg("relocated child directory")
	return target, want, nil
}

// PersistChild writes the child's name sidecar if it changed. The
// caller owns the map update.
func (s *Store) PersistChild(g types.Group, c types.Child) error {
	dir, err := s.ChildRootDir(g, c)
	if err != nil {
		return err
	}
	if current, ok := naming.ReadSidecar(dir); ok && current == c.Name() {
		return nil
	}
	return naming.WriteSidecar(dir, c.Name())
}

// ChildRootDir composes the child's on-disk root, creating it lazily.
func (s *Store) ChildRootDir(g types.Group, c types.Child) (string, error) {
	dirName, ok := s.mangler.DirName(g, c)
	if !ok {
		return "", types.NewUserError("child has no business name")
	}
	dir := filepath.Join(g.RootDir(), JobsDir, dirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create child directory: %w", err)
	}
	return dir, nil
}
