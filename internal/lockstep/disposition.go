package lockstep

// Phase says why a tick or lerp is being computed.
type Phase uint8

const (
	// GroundTruth applies an authoritative tick.
	GroundTruth Phase = iota
	// Predicting runs a tick the server has not confirmed yet.
	Predicting
	// LerpingCurrentPredictionToNextPrediction blends the current
	// prediction toward the one a tick ahead.
	LerpingCurrentPredictionToNextPrediction
)

func (p Phase) String() string {
	switch p {
	case GroundTruth:
		return "ground_truth"
	case Predicting:
		return "predicting"
	case LerpingCurrentPredictionToNextPrediction:
		return "lerping"
	default:
		return "unknown"
	}
}

// Disposition alters game logic depending on whether the engine is applying
// ground truth, predicting or interpolating. Perspective is zero when no
// local player is known.
type Disposition struct {
	Phase       Phase
	Perspective PlayerID
	// Only meaningful while Predicting.
	AdditionalInterpolationPrediction bool
	// Only meaningful while lerping.
	SmoothedTicksSinceReal float32
}

func GroundTruthDisposition() Disposition {
	return Disposition{Phase: GroundTruth}
}

func PredictingDisposition(perspective PlayerID, interpolation bool) Disposition {
	return Disposition{
		Phase:                             Predicting,
		Perspective:                       perspective,
		AdditionalInterpolationPrediction: interpolation,
	}
}

func LerpingDisposition(perspective PlayerID, smoothed float32) Disposition {
	return Disposition{
		Phase:                  LerpingCurrentPredictionToNextPrediction,
		Perspective:            perspective,
		SmoothedTicksSinceReal: smoothed,
	}
}

// IsPredicting reports an uncertain prediction in progress.
func (d Disposition) IsPredicting() bool {
	return d.Phase == Predicting
}

// Predicting returns the perspective of a prediction or of a lerp between
// predictions.
func (d Disposition) Predicting() (PlayerID, bool) {
	switch d.Phase {
	case Predicting, LerpingCurrentPredictionToNextPrediction:
		return d.Perspective, d.Perspective != 0
	}
	return 0, false
}

// InterpolationPrediction is true for the extra tick predicted only to
// interpolate toward, and while lerping toward it.
func (d Disposition) InterpolationPrediction() bool {
	switch d.Phase {
	case Predicting:
		return d.AdditionalInterpolationPrediction
	case LerpingCurrentPredictionToNextPrediction:
		return true
	}
	return false
}

// SmoothedNormalizedTicksSinceReal is the fractional number of ticks since
// the last real state, smoothed and centered on zero. Present only while
// lerping between predictions.
func (d Disposition) SmoothedNormalizedTicksSinceReal() (float32, bool) {
	if d.Phase == LerpingCurrentPredictionToNextPrediction {
		return d.SmoothedTicksSinceReal, true
	}
	return 0, false
}
