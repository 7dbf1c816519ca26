// Package noise assigns an attribution mode to a new source and synthesizes
// fake reports under randomized response.
package noise

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"

	"registrar/internal/registration/models"
	"registrar/internal/registration/privacy"
)

// DefaultEpsilon is the event-level privacy parameter.
const DefaultEpsilon = 14.0

// Randomizer is the randomized-response noise decision. With the flip
// probability for the source's state space it replaces the truthful outcome
// with a state drawn uniformly from every possible output.
type Randomizer struct {
	epsilon float64

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Randomizer.
type Option func(*Randomizer)

// WithRand injects the random source, for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(r *Randomizer) {
		r.rng = rng
	}
}

// WithEpsilon overrides DefaultEpsilon.
func WithEpsilon(epsilon float64) Option {
	return func(r *Randomizer) {
		r.epsilon = epsilon
	}
}

// New builds a Randomizer.
func New(opts ...Option) *Randomizer {
	r := &Randomizer{
		epsilon: DefaultEpsilon,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Decide returns the attribution mode for src and, when the mode is Falsely,
// the fake reports to store with it.
func (r *Randomizer) Decide(_ context.Context, src *models.Source) (models.AttributionMode, []models.FakeReport, error) {
	layouts, maxReports := privacy.Layouts(src)
	sampler := newStateSampler(layouts, maxReports)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rng.Float64() >= privacy.FlipProbability(sampler.total(), r.epsilon) {
		return models.AttributionTruthfully, nil, nil
	}
	state := sampler.sample(r.rng)
	if len(state) == 0 {
		return models.AttributionNever, nil, nil
	}
	fakes := make([]models.FakeReport, 0, len(state))
	for _, slot := range state {
		l := layouts[slot.layout]
		fakes = append(fakes, models.FakeReport{
			TriggerData:   l.TriggerData,
			ReportingTime: src.ReportingTime(l.Windows[slot.window]),
			Destinations:  r.destinations(src),
		})
	}
	return models.AttributionFalsely, fakes, nil
}

// destinations picks one surface for a fake report; dual-destination sources
// choose at random.
func (r *Randomizer) destinations(src *models.Source) []string {
	switch {
	case src.HasDualDestination():
		if r.rng.IntN(2) == 0 {
			return slices.Clone(src.AppDestinations)
		}
		return slices.Clone(src.WebDestinations)
	case len(src.AppDestinations) > 0:
		return slices.Clone(src.AppDestinations)
	default:
		return slices.Clone(src.WebDestinations)
	}
}

type slot struct {
	layout int
	window int
}

// stateSampler draws uniformly from the output states counted by
// privacy.NumStates. suffix[i][r] is the number of ways layouts i.. can emit
// at most r reports.
type stateSampler struct {
	layouts []privacy.DataLayout
	suffix  [][]float64
	max     int
}

func newStateSampler(layouts []privacy.DataLayout, maxReports int) *stateSampler {
	suffix := make([][]float64, len(layouts)+1)
	suffix[len(layouts)] = make([]float64, maxReports+1)
	for r := range suffix[len(layouts)] {
		suffix[len(layouts)][r] = 1
	}
	for i := len(layouts) - 1; i >= 0; i-- {
		suffix[i] = make([]float64, maxReports+1)
		for r := 0; r <= maxReports; r++ {
			for j := 0; j <= min(layouts[i].Cap, r); j++ {
				suffix[i][r] += privacy.Multisets(len(layouts[i].Windows), j) * suffix[i+1][r-j]
			}
		}
	}
	return &stateSampler{layouts: layouts, suffix: suffix, max: maxReports}
}

func (s *stateSampler) total() float64 {
	return s.suffix[0][s.max]
}

func (s *stateSampler) sample(rng *rand.Rand) []slot {
	var out []slot
	remaining := s.max
	for i, l := range s.layouts {
		target := rng.Float64() * s.suffix[i][remaining]
		count := 0
		for j := 0; j <= min(l.Cap, remaining); j++ {
			weight := privacy.Multisets(len(l.Windows), j) * s.suffix[i+1][remaining-j]
			if target < weight {
				count = j
				break
			}
			target -= weight
			count = j
		}
		for _, w := range sampleMultiset(rng, len(l.Windows), count) {
			out = append(out, slot{layout: i, window: w})
		}
		remaining -= count
	}
	return out
}

// sampleMultiset draws a uniform multiset of size k over n windows using the
// stars-and-bars bijection with k-subsets of n+k-1 positions.
func sampleMultiset(rng *rand.Rand, n, k int) []int {
	if k == 0 || n == 0 {
		return nil
	}
	positions := rng.Perm(n + k - 1)[:k]
	slices.Sort(positions)
	out := make([]int, k)
	for i, p := range positions {
		out[i] = p - i
	}
	return out
}
