package process

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// RegisterSource fills register snapshots on creation, fork and regeneration.
type RegisterSource interface {
	Registers() Registers
}

// RegisterSourceFunc lets a plain function act as a RegisterSource
type RegisterSourceFunc func() Registers

func (f RegisterSourceFunc) Registers() Registers {
	return f()
}

type randomRegisterSource struct {
	rnd   *rand.Rand
	mutex sync.Mutex
}

// NewRandomRegisterSource draws every field uniformly over [0, 65535].
// A zero seed uses the current time.
func NewRandomRegisterSource(seed int64) RegisterSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &randomRegisterSource{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

func (s *randomRegisterSource) Registers() Registers {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return Registers{
		EAX: s.next(),
		EBX: s.next(),
		ECX: s.next(),
		EDX: s.next(),
		ESI: s.next(),
		EDI: s.next(),
		EBP: s.next(),
		ESP: s.next(),
	}
}

func (s *randomRegisterSource) next() uint16 {
	return uint16(s.rnd.Intn(math.MaxUint16 + 1))
}
