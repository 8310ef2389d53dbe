package optimizer

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/MarceloManteigass/EpanetAPI/core/model"
)

// Proposer produces the candidate schedule of a trial. pumps are freshly
// reset and only their identifiers and increment counts should be read.
type Proposer interface {
	Propose(pumps []model.ControlledLink) (model.Schedule, error)
}

// Observer is implemented by proposers that learn from scored trials.
// Observe is called once per completed trial, from a single goroutine.
type Observer interface {
	Observe(s model.Schedule, objective float64)
}

func newSource(seed uint64) rand.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// RandomProposer assigns every hour of every pump an independent fair coin
// flip.
type RandomProposer struct {
	mu   sync.Mutex
	coin distuv.Bernoulli
}

// NewRandomProposer returns a proposer seeded with seed. A zero seed is
// replaced by the current time.
func NewRandomProposer(seed uint64) *RandomProposer {
	return &RandomProposer{coin: distuv.Bernoulli{P: 0.5, Src: newSource(seed)}}
}

func (r *RandomProposer) Propose(pumps []model.ControlledLink) (model.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := make(model.Schedule, len(pumps))
	for _, p := range pumps {
		values := make([]int, p.Inc())
		for h := range values {
			values[h] = int(r.coin.Rand())
		}
		s[p.ID()] = values
	}
	return s, nil
}

// LocalSearchProposer mutates the best schedule observed so far, flipping
// every hourly status with FlipProbability. Until a trial is observed it
// behaves like RandomProposer.
type LocalSearchProposer struct {
	mu      sync.Mutex
	coin    distuv.Bernoulli
	flip    distuv.Bernoulli
	best    model.Schedule
	bestObj float64
}

// NewLocalSearchProposer returns a proposer flipping bits with probability
// p. p outside (0,1] defaults to 1/model.Increments.
func NewLocalSearchProposer(seed uint64, p float64) *LocalSearchProposer {
	if p <= 0 || p > 1 {
		p = 1.0 / model.Increments
	}
	src := newSource(seed)
	return &LocalSearchProposer{
		coin:    distuv.Bernoulli{P: 0.5, Src: src},
		flip:    distuv.Bernoulli{P: p, Src: src},
		bestObj: math.Inf(1),
	}
}

func (l *LocalSearchProposer) Propose(pumps []model.ControlledLink) (model.Schedule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := make(model.Schedule, len(pumps))
	for _, p := range pumps {
		values := make([]int, p.Inc())
		base, ok := l.best[p.ID()]
		for h := range values {
			if !ok || h >= len(base) {
				values[h] = int(l.coin.Rand())
				continue
			}
			values[h] = base[h]
			if l.flip.Rand() == 1 {
				values[h] = 1 - base[h]
			}
		}
		s[p.ID()] = values
	}
	return s, nil
}

// Observe keeps the schedule when it beats the best one seen.
func (l *LocalSearchProposer) Observe(s model.Schedule, objective float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if objective < l.bestObj {
		l.best = s.Clone()
		l.bestObj = objective
	}
}
