package analytics

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the randomness source of the scorers. Float64 returns a value in [0,1).
type Rand interface {
	Float64() float64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// NewRand returns a goroutine-safe source. Seed 0 seeds from the clock.
func NewRand(seed uint64) Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Fixed always returns V. Useful for pinning jitter in tests.
type Fixed struct{ V float64 }

func (f Fixed) Float64() float64 { return f.V }

func uniform(r Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}
