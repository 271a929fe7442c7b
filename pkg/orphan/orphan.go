package orphan

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/fernhill/rookery/pkg/types"
)

// Unlimited disables a retention bound.
const Unlimited = -1

// Policy holds the retention knobs of the default strategy.
type Policy struct {
	// Prune enables deletion at all.
	Prune bool `yaml:"prune"`
	// NumToKeep keeps the N newest orphans; Unlimited keeps all.
	NumToKeep int `yaml:"num_to_keep"`
	// DaysToKeep keeps anything built within D days; Unlimited keeps all.
	DaysToKeep int `yaml:"days_to_keep"`
}

// ParseKeep maps a stored bound to its integer form. Blank or
// unparsable strings mean Unlimited.
func ParseKeep(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unlimited
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Unlimited
	}
	return n
}

// ParsePolicy builds a Policy from its persisted string keys.
func ParsePolicy(prune bool, numToKeep, daysToKeep string) Policy {
	return Policy{
		Prune:      prune,
		NumToKeep:  ParseKeep(numToKeep),
		DaysToKeep: ParseKeep(daysToKeep),
	}
}

// Strategy decides which dropped children a finishing computation may
// delete. Implementations never delete; they only select.
type Strategy interface {
	// Select returns the subset of orphans to delete.
	Select(orphans []types.Child, now time.Time, logger zerolog.Logger) []types.Child
}

// KeepAll is the default when a container configures no strategy.
type KeepAll struct{}

func (KeepAll) Select([]types.Child, time.Time, zerolog.Logger) []types.Child {
	return nil
}

// Default implements the standard retention policy: keep up to
// NumToKeep newest orphans, plus anything built within DaysToKeep days.
type Default struct {
	Policy Policy
}

// Select sorts the orphans by last build time descending and applies
// both bounds. Children whose last build is still in progress, and
// children with a kept build, are never deleted.
func (d Default) Select(orphans []types.Child, now time.Time, logger zerolog.Logger) []types.Child {
	p := d.Policy
	if !p.Prune || (p.NumToKeep == Unlimited && p.DaysToKeep == Unlimited) {
		return nil
	}

	candidates := lo.Filter(orphans, func(c types.Child, _ int) bool {
		if b, ok := c.(types.Buildable); ok && b.Building() {
			logger.Info().Str("child", c.Name()).Msg("keeping orphan: last build still in progress")
			return false
		}
		if k, ok := c.(types.Pinned); ok && k.HasKeptBuild() {
			logger.Info().Str("child", c.Name()).Msg("keeping orphan: has a kept build")
			return false
		}
		return true
	})

	// Newest first; ties broken stably by name.
	sort.SliceStable(candidates, func(i, j int) bool {
		ti, tj := types.LastBuild(candidates[i]), types.LastBuild(candidates[j])
		if ti.Equal(tj) {
			return candidates[i].Name() < candidates[j].Name()
		}
		return ti.After(tj)
	})

	doomed := make(map[string]types.Child)

	if p.NumToKeep != Unlimited {
		for _, c := range candidates[min(p.NumToKeep, len(candidates)):] {
			doomed[c.Name()] = c
		}
	}

	if p.DaysToKeep != Unlimited {
		cutoff := now.Add(-time.Duration(p.DaysToKeep) * 24 * time.Hour)
		for _, c := range candidates {
			if types.LastBuild(c).Before(cutoff) {
				doomed[c.Name()] = c
			}
		}
	}

	out := make([]types.Child, 0, len(doomed))
	for _, c := range candidates {
		if _, ok := doomed[c.Name()]; ok {
			out = append(out, c)
		}
	}
	return out
}
