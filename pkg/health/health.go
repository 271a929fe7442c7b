package health

import (
	"math/rand"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/fernhill/rookery/pkg/telemetry"
	"github.com/fernhill/rookery/pkg/types"
)

// Report summarizes a container's recent runs.
type Report struct {
	Container    string
	LastResult   types.Result
	LastRun      time.Time
	Runs         int
	Failures     int
	SuccessRatio float64
	GeneratedAt  time.Time
}

// Healthy reports whether the last run ended well.
func (r Report) Healthy() bool {
	return r.Runs > 0 && r.LastResult == types.ResultSuccess
}

// Reporter computes and caches health reports.
type Reporter struct {
	store *telemetry.Store
	cache *gocache.Cache
	ttl   time.Duration

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewReporter builds a reporter with the configured cache window in
// minutes. Callers clamp the minutes; the reporter trusts them.
func NewReporter(store *telemetry.Store, cacheMinutes int) *Reporter {
	ttl := time.Duration(cacheMinutes) * time.Minute
	return &Reporter{
		store: store,
		cache: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
}

// Report returns the container's health, from cache when fresh.
func (r *Reporter) Report(fullName string) (Report, error) {
	if v, ok := r.cache.Get(fullName); ok {
		return v.(Report), nil
	}

	rep, err := r.compute(fullName)
	if err != nil {
		return Report{}, err
	}
	r.cache.Set(fullName, rep, r.jitterTTL())
	return rep, nil
}

// Invalidate drops the cached report, e.g. right after a run finishes
// or the container is deleted.
func (r *Reporter) Invalidate(fullName string) {
	r.cache.Delete(fullName)
}

func (r *Reporter) compute(fullName string) (Report, error) {
	runs, err := r.store.History(fullName, 0)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		Container:   fullName,
		LastResult:  types.ResultNotBuilt,
		Runs:        len(runs),
		GeneratedAt: r.now(),
	}
	if len(runs) == 0 {
		return rep, nil
	}

	rep.LastResult = runs[0].Result
	rep.LastRun = runs[0].StartOf()
	succeeded := 0
	for _, run := range runs {
		switch run.Result {
		case types.ResultSuccess:
			succeeded++
		case types.ResultFailure:
			rep.Failures++
		}
	}
	rep.SuccessRatio = float64(succeeded) / float64(len(runs))
	return rep, nil
}

// jitterTTL picks an expiry uniformly within the second half of the
// window, so entries created together do not refresh together.
func (r *Reporter) jitterTTL() time.Duration {
	half := r.ttl / 2
	r.mu.Lock()
	defer r.mu.Unlock()
	return half + time.Duration(r.rng.Int63n(int64(half)+1))
}
