package ibrdp

import "github.com/sarchlab/rdpcache/sim/hooking"

// Positions where the policy invokes hooks.
var (
	// HookPosPredictorUpdate marks a sampler observation reaching the
	// predictor. The detail is a PredictorUpdate.
	HookPosPredictorUpdate = &hooking.HookPos{Name: "IBRDP.PredictorUpdate"}

	// HookPosVictim marks the policy choosing a victim in a full set. The
	// detail is a VictimDecision.
	HookPosVictim = &hooking.HookPos{Name: "IBRDP.Victim"}
)

// PredictorUpdate describes one training step of the predictor.
type PredictorUpdate struct {
	PC          uint32
	Observation uint32

	// Saturated is set when the observation is the largest prediction code,
	// which is what a sample that aged out of the sampler reports.
	Saturated bool
}

// VictimDecision describes the outcome of a victim selection.
type VictimDecision struct {
	SetID int
	WayID int

	// VictimTime is the larger of the predicted time left and the idle time
	// of the victim, in accesses.
	VictimTime uint64

	// ByPrediction is set when the victim won on predicted time left rather
	// than on idle time.
	ByPrediction bool
}

// Victim reasons reported by ClassifyVictim.
const (
	VictimByPrediction = "by prediction"
	VictimByIdleTime   = "by idle time"
)

// ClassifyVictim is a hooking.Classifier that sorts victim decisions by the
// comparison that chose them.
func ClassifyVictim(ctx hooking.HookCtx) (string, bool) {
	decision, ok := ctx.Detail.(VictimDecision)
	if !ok {
		return "", false
	}

	if decision.ByPrediction {
		return VictimByPrediction, true
	}

	return VictimByIdleTime, true
}
