package orphan

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernhill/rookery/pkg/types"
)

type buildChild struct {
	name      string
	lastBuild time.Time
	building  bool
	kept      bool
}

func (c *buildChild) Name() string                         { return c.name }
func (c *buildChild) SetName(name string)                  { c.name = name }
func (c *buildChild) OnLoad(_ types.Group, _ string) error { return nil }
func (c *buildChild) OnCreatedFromScratch()                {}
func (c *buildChild) Save() error                          { return nil }
func (c *buildChild) LastBuildTime() time.Time             { return c.lastBuild }
func (c *buildChild) Building() bool                       { return c.building }
func (c *buildChild) HasKeptBuild() bool                   { return c.kept }

func names(children []types.Child) []string {
	out := make([]string, 0, len(children))
	for _, c := range children {
		out = append(out, c.Name())
	}
	return out
}

func TestParseKeep(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "blank", in: "", want: Unlimited},
		{name: "whitespace", in: "  ", want: Unlimited},
		{name: "unparsable", in: "many", want: Unlimited},
		{name: "negative", in: "-3", want: Unlimited},
		{name: "zero", in: "0", want: 0},
		{name: "positive", in: "7", want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseKeep(tt.in))
		})
	}
}

func TestPruneDisabled(t *testing.T) {
	now := time.Now()
	orphans := []types.Child{&buildChild{name: "a", lastBuild: now}}

	s := Default{Policy: Policy{Prune: false, NumToKeep: 0, DaysToKeep: 0}}
	assert.Empty(t, s.Select(orphans, now, zerolog.Nop()))

	s = Default{Policy: Policy{Prune: true, NumToKeep: Unlimited, DaysToKeep: Unlimited}}
	assert.Empty(t, s.Select(orphans, now, zerolog.Nop()))
}

func TestNumToKeepKeepsNewest(t *testing.T) {
	now := time.Now()
	orphans := []types.Child{
		&buildChild{name: "old", lastBuild: now.Add(-3 * time.Hour)},
		&buildChild{name: "newest", lastBuild: now.Add(-1 * time.Hour)},
		&buildChild{name: "middle", lastBuild: now.Add(-2 * time.Hour)},
	}

	s := Default{Policy: Policy{Prune: true, NumToKeep: 1, DaysToKeep: Unlimited}}
	doomed := s.Select(orphans, now, zerolog.Nop())

	assert.ElementsMatch(t, []string{"middle", "old"}, names(doomed))
}

func TestDaysToKeepCutsOldBuilds(t *testing.T) {
	now := time.Now()
	orphans := []types.Child{
		&buildChild{name: "fresh", lastBuild: now.Add(-12 * time.Hour)},
		&buildChild{name: "stale", lastBuild: now.Add(-72 * time.Hour)},
		&buildChild{name: "never-built"}, // zero last build time
	}

	s := Default{Policy: Policy{Prune: true, NumToKeep: Unlimited, DaysToKeep: 2}}
	doomed := s.Select(orphans, now, zerolog.Nop())

	assert.ElementsMatch(t, []string{"stale", "never-built"}, names(doomed))
}

func TestBothBoundsUnion(t *testing.T) {
	now := time.Now()
	orphans := []types.Child{
		&buildChild{name: "a", lastBuild: now.Add(-1 * time.Hour)},
		&buildChild{name: "b", lastBuild: now.Add(-2 * time.Hour)},
		&buildChild{name: "c", lastBuild: now.Add(-100 * 24 * time.Hour)},
	}

	s := Default{Policy: Policy{Prune: true, NumToKeep: 2, DaysToKeep: 30}}
	doomed := s.Select(orphans, now, zerolog.Nop())

	// c falls to both bounds; a and b survive both.
	assert.ElementsMatch(t, []string{"c"}, names(doomed))
}

func TestBuildingAndPinnedAreNeverDeleted(t *testing.T) {
	now := time.Now()
	orphans := []types.Child{
		&buildChild{name: "running", lastBuild: now.Add(-90 * 24 * time.Hour), building: true},
		&buildChild{name: "pinned", lastBuild: now.Add(-90 * 24 * time.Hour), kept: true},
		&buildChild{name: "doomed", lastBuild: now.Add(-90 * 24 * time.Hour)},
	}

	s := Default{Policy: Policy{Prune: true, NumToKeep: 0, DaysToKeep: 1}}
	doomed := s.Select(orphans, now, zerolog.Nop())

	assert.ElementsMatch(t, []string{"doomed"}, names(doomed))
}

func TestDropAndRetainScenario(t *testing.T) {
	// computeChildren now yields {a}; among the dropped {b, c} the one
	// with the most recent last build is kept under numToKeep=1.
	now := time.Now()
	b := &buildChild{name: "b", lastBuild: now.Add(-1 * time.Hour)}
	c := &buildChild{name: "c", lastBuild: now.Add(-5 * time.Hour)}

	s := Default{Policy: Policy{Prune: true, NumToKeep: 1, DaysToKeep: Unlimited}}
	doomed := s.Select([]types.Child{b, c}, now, zerolog.Nop())

	require.Len(t, doomed, 1)
	assert.Equal(t, "c", doomed[0].Name())
}

func TestKeepAll(t *testing.T) {
	now := time.Now()
	orphans := []types.Child{&buildChild{name: "a"}}
	assert.Empty(t, KeepAll{}.Select(orphans, now, zerolog.Nop()))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	f, ok := r.Get("default")
	require.True(t, ok)
	s := f(Policy{Prune: true, NumToKeep: 0, DaysToKeep: Unlimited})
	assert.IsType(t, Default{}, s)

	f, ok = r.Get("keep-all")
	require.True(t, ok)
	assert.IsType(t, KeepAll{}, f(Policy{}))

	_, ok = r.Get("nope")
	assert.False(t, ok)
}
