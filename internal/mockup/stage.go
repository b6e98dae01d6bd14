package mockup

type Stage int

const (
	StageIdle Stage = iota
	StageScenesPending
	StageScenesReady
	StageCompositePending
	StageCompositeReady
	StageStylePending
	StageDone
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageScenesPending:
		return "scenes_pending"
	case StageScenesReady:
		return "scenes_ready"
	case StageCompositePending:
		return "composite_pending"
	case StageCompositeReady:
		return "composite_ready"
	case StageStylePending:
		return "style_pending"
	case StageDone:
		return "done"
	case StageError:
		return "error"
	default:
		return "unknown"
	}
}

// Pending reports whether a provider call is in flight in this stage.
func (s Stage) Pending() bool {
	return s == StageScenesPending || s == StageCompositePending || s == StageStylePending
}
