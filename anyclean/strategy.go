package anyclean

import "fmt"

// Strategy selects how label errors are chosen from the
// calibrated confident joint.
type Strategy int

const (
	// Both flags samples chosen by PruneByClass and by
	// PruneByNoiseRate.
	Both Strategy = iota

	// PruneByClass flags, for each given label, the samples
	// with the lowest self-confidence.
	PruneByClass

	// PruneByNoiseRate flags, for each off-diagonal entry of
	// the confident joint, the samples with the largest
	// margin toward the other class.
	PruneByNoiseRate
)

// ParseStrategy parses the names used on the command line.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "both":
		return Both, nil
	case "prune_by_class":
		return PruneByClass, nil
	case "prune_by_noise_rate":
		return PruneByNoiseRate, nil
	}
	return 0, fmt.Errorf("parse strategy: unknown strategy %q", name)
}

// String returns the name accepted by ParseStrategy.
func (s Strategy) String() string {
	switch s {
	case Both:
		return "both"
	case PruneByClass:
		return "prune_by_class"
	case PruneByNoiseRate:
		return "prune_by_noise_rate"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}
