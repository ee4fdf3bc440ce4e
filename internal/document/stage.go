package document

// Stage is a named step in the document lifecycle state machine.
// Stages advance monotonically; a document never moves backward except
// through the explicit failed-then-retry path, which resumes from the
// last completed stage.
type Stage string

const (
	StageDiscovered Stage = "discovered"
	StageFetched    Stage = "fetched"
	StageCleaned    Stage = "cleaned"
	StageEmbedded   Stage = "embedded"
	StageSQLLoaded  Stage = "sql_loaded"
	// StageComplete means the vector write landed; vector-loaded and
	// complete are the same state.
	StageComplete Stage = "complete"
)

// stageOrder defines the forward progression of the state machine.
var stageOrder = []Stage{
	StageDiscovered,
	StageFetched,
	StageCleaned,
	StageEmbedded,
	StageSQLLoaded,
	StageComplete,
}

// Rank returns the position of the stage in the lifecycle, or -1 for an
// unknown stage.
func (s Stage) Rank() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the stage that follows s. Complete has no successor and
// returns itself.
func (s Stage) Next() Stage {
	r := s.Rank()
	if r < 0 || r >= len(stageOrder)-1 {
		return s
	}
	return stageOrder[r+1]
}

// CanAdvance reports whether moving from s to next is a legal single-step
// forward transition.
func (s Stage) CanAdvance(next Stage) bool {
	return next.Rank() == s.Rank()+1
}

// Terminal reports whether the stage is the end of the lifecycle.
func (s Stage) Terminal() bool {
	return s == StageComplete
}
