package classifier

// Mode identifies how many subjects the crop path follows at a tick
type Mode int

const (
	ZeroFace Mode = iota
	OneFace
	TwoFace
)

// String returns a stable name used in descriptors and logs
func (m Mode) String() string {
	switch m {
	case OneFace:
		return "one_face"
	case TwoFace:
		return "two_face"
	default:
		return "zero_face"
	}
}

// ModeForCount maps a detected face count to a raw mode. Counts above two
// are treated as two; the sampler already ranks and discards extras.
func ModeForCount(n int) Mode {
	switch {
	case n <= 0:
		return ZeroFace
	case n == 1:
		return OneFace
	default:
		return TwoFace
	}
}

// State carries the damping state between ticks. Candidate is the raw mode
// currently accumulating evidence against Mode; CandidateTicks counts how
// many consecutive ticks it has held.
type State struct {
	Mode           Mode
	Candidate      Mode
	CandidateTicks int
}

// Classifier damps raw per-tick modes with hysteresis: a change is accepted
// only after the same differing raw mode is observed for HysteresisTicks
// consecutive ticks. A raw sequence that alternates every tick therefore
// never reaches consensus and the previous mode is held indefinitely.
type Classifier struct {
	HysteresisTicks int
}

// New creates a Classifier. Tick counts below one are raised to one,
// which disables damping.
func New(hysteresisTicks int) *Classifier {
	if hysteresisTicks < 1 {
		hysteresisTicks = 1
	}
	return &Classifier{HysteresisTicks: hysteresisTicks}
}

// Step advances the damping state by one tick of raw evidence
func (c *Classifier) Step(s State, raw Mode) State {
	if raw == s.Mode {
		s.Candidate = s.Mode
		s.CandidateTicks = 0
		return s
	}

	if raw == s.Candidate {
		s.CandidateTicks++
	} else {
		s.Candidate = raw
		s.CandidateTicks = 1
	}

	if s.CandidateTicks >= c.HysteresisTicks {
		s.Mode = raw
		s.Candidate = raw
		s.CandidateTicks = 0
	}
	return s
}

// Run classifies a whole sequence of per-tick face counts. The first
// sample seeds the mode directly since there is no prior evidence.
func (c *Classifier) Run(counts []int) []Mode {
	if len(counts) == 0 {
		return nil
	}

	modes := make([]Mode, len(counts))
	state := State{Mode: ModeForCount(counts[0])}
	modes[0] = state.Mode

	for i := 1; i < len(counts); i++ {
		state = c.Step(state, ModeForCount(counts[i]))
		modes[i] = state.Mode
	}
	return modes
}
