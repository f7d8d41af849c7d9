package vm

// Device tracks the interpreter's performance counters: a weighted cycle
// count (a weighted cycle count metric, configurable per
// mnemonic) and raw instruction/branch statistics used by diagnostics and
// the debugger's status line. It also owns the branch predictor consulted
// by Branch handlers and the one-slot ifetch hint those handlers leave for
// the interpreter's next Step.
type Device struct {
	Weights map[string]uint64
	Cycles  uint64
	Insns   uint64

	BranchesTaken    uint64
	BranchesNotTaken uint64

	Predictor     *BranchPredictor
	PredictHits   uint64
	PredictMisses uint64

	// NextHint is the Slot a Branch/JAL handler already resolved for the pc
	// it just jumped to; Step consumes it instead of re-resolving the
	// fetch through ICache.Fetch's map lookup and bounds checks.
	NextHint *Slot
}

const defaultWeight = 1

// NewDevice builds a Device from a flat mnemonic->weight map (config.toml's
// weights.* table); a nil or empty map charges every instruction 1 cycle.
func NewDevice(weights map[string]uint64) *Device {
	if weights == nil {
		weights = map[string]uint64{}
	}
	return &Device{Weights: weights, Predictor: newBranchPredictor()}
}

// Tick charges mnemonic's configured weight (default 1) and counts one
// retired instruction.
func (d *Device) Tick(mnemonic string) {
	d.Insns++
	w, ok := d.Weights[mnemonic]
	if !ok {
		w = defaultWeight
	}
	d.Cycles += w
}

// RecordBranch updates taken/not-taken counters for a branch instruction's
// outcome, used by the debugger's branch-prediction-hint display.
func (d *Device) RecordBranch(taken bool) {
	if taken {
		d.BranchesTaken++
	} else {
		d.BranchesNotTaken++
	}
}

const (
	predictorTableSize  = 4096
	predictorCounterMax = 3 // 2-bit saturating counter
)

// BranchPredictor is a direct-mapped table of 2-bit saturating counters,
// one per (pc/4) mod predictorTableSize, consulted and updated by every
// Branch handler so the device can report prediction accuracy and hand the
// interpreter a resolved ifetch hint for the path actually taken.
type BranchPredictor struct {
	counters [predictorTableSize]uint8
}

// newBranchPredictor returns a predictor biased not-taken until trained;
// deterministic (unlike a randomly seeded table) so runs are reproducible.
func newBranchPredictor() *BranchPredictor {
	return &BranchPredictor{}
}

func (p *BranchPredictor) index(pc uint32) uint32 {
	return (pc / 4) % predictorTableSize
}

// Predict reports whether the branch at pc is predicted taken.
func (p *BranchPredictor) Predict(pc uint32) bool {
	return p.counters[p.index(pc)] > predictorCounterMax/2
}

// Update nudges pc's counter toward taken or not-taken, saturating at the
// table's bit width.
func (p *BranchPredictor) Update(pc uint32, taken bool) {
	idx := p.index(pc)
	c := p.counters[idx]
	if taken {
		if c < predictorCounterMax {
			c++
		}
	} else if c > 0 {
		c--
	}
	p.counters[idx] = c
}
