package lifecycle

import "context"

// Phase orders shutdown hooks. Phases run one after another in ascending
// order; hooks inside a phase run concurrently.
type Phase int

const (
	// PhaseIntake stops accepting new work: bot polling, HTTP listeners.
	PhaseIntake Phase = iota
	// PhaseDrain lets in-flight background work finish: notification
	// workers, cleaners.
	PhaseDrain
	// PhaseRelease closes shared clients and flushes buffers.
	PhaseRelease
)

func (p Phase) String() string {
	switch p {
	case PhaseIntake:
		return "intake"
	case PhaseDrain:
		return "drain"
	case PhaseRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Hook describes a named shutdown hook.
type Hook struct {
	Name  string
	Phase Phase
	Fn    func(ctx context.Context) error
}
