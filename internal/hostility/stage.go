package hostility

// Stage is the escalation band for a faction pair in a district.
// It is a pure function of tension; boundaries are inclusive-lower.
type Stage int

const (
	StageCalm Stage = iota
	StageUneasy
	StageTense
	StageVolatile
	StageExplosive
)

// Stage thresholds on the tension scale.
const (
	uneasyThreshold    = 0.2
	tenseThreshold     = 0.4
	volatileThreshold  = 0.6
	explosiveThreshold = 0.8
)

// StageForTension maps a tension value to its escalation stage.
func StageForTension(t float64) Stage {
	switch {
	case t < uneasyThreshold:
		return StageCalm
	case t < tenseThreshold:
		return StageUneasy
	case t < volatileThreshold:
		return StageTense
	case t < explosiveThreshold:
		return StageVolatile
	default:
		return StageExplosive
	}
}

func (s Stage) String() string {
	switch s {
	case StageCalm:
		return "calm"
	case StageUneasy:
		return "uneasy"
	case StageTense:
		return "tense"
	case StageVolatile:
		return "volatile"
	case StageExplosive:
		return "explosive"
	default:
		return "unknown"
	}
}
