package rebalance

// Mode controls when a dirty leaf's split is actually carried out.
type Mode int

const (
	// ModeImmediate splits inline as soon as NotifyDirty fires. Default
	// outside bulk-loading.
	ModeImmediate Mode = iota
	// ModeDeferred enqueues dirty leaves and only processes them when
	// ProcessDeferred is called (driven by Index.FinalizeBulkLoading).
	ModeDeferred
	// ModeIncremental enqueues dirty leaves and drains them in bounded
	// time slices on a background goroutine, for a live index under
	// continuous insert load that cannot tolerate FinalizeBulkLoading's
	// pause.
	ModeIncremental
	// ModeAuto defers the immediate/deferred/incremental choice to the
	// Detector/Selector pair on every NotifyDirty call, re-evaluating as
	// the observed workload shifts. Never used unless the caller opts in
	// via WithMode(ModeAuto); an explicit mode is never overridden.
	ModeAuto
)

func (m Mode) String() string {
	switch m {
	case ModeImmediate:
		return "Immediate"
	case ModeDeferred:
		return "Deferred"
	case ModeIncremental:
		return "Incremental"
	case ModeAuto:
		return "Auto"
	default:
		return "Unknown"
	}
}
