package state

// Outcome discriminates the result of a todo list operation. Refusals are
// expected conditions, not errors.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	// OutcomeActiveNotEmpty: Store without overwrite found an active list.
	OutcomeActiveNotEmpty
	// OutcomeStashOccupied: StashActive without force found a stashed snapshot.
	OutcomeStashOccupied
	// OutcomeActiveIncomplete: RestoreStashed found unfinished active todos.
	OutcomeActiveIncomplete
	// OutcomeNothingStashed: RestoreStashed had nothing to restore.
	OutcomeNothingStashed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeActiveNotEmpty:
		return "active todos present"
	case OutcomeStashOccupied:
		return "stash occupied"
	case OutcomeActiveIncomplete:
		return "active todos incomplete"
	case OutcomeNothingStashed:
		return "nothing stashed"
	default:
		return "unknown"
	}
}

// Result reports what a todo list operation did.
type Result struct {
	Outcome Outcome
	// Count is the number of todos moved or stored.
	Count int
}

// Ok reports whether the operation mutated the list as requested.
func (r Result) Ok() bool {
	return r.Outcome == OutcomeApplied
}

// Store replaces the active list with incoming. With overwrite=false an
// existing non-empty active list is left alone.
func (l *TodoList) Store(incoming []Todo, overwrite bool) Result {
	if len(l.Active) > 0 && !overwrite {
		return Result{Outcome: OutcomeActiveNotEmpty}
	}

	active := make([]Todo, len(incoming))
	for i, t := range incoming {
		t.Status = ParseTodoStatus(string(t.Status))
		active[i] = t
	}
	l.Active = active
	return Result{Outcome: OutcomeApplied, Count: len(active)}
}

// AllComplete reports whether every active todo is completed. It is
// vacuously true for an empty list; callers decide what emptiness means.
func (l *TodoList) AllComplete() bool {
	for _, t := range l.Active {
		if t.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// HasActive reports whether any todos are active.
func (l *TodoList) HasActive() bool {
	return len(l.Active) > 0
}

// StashActive moves the active list into the stash slot. An occupied slot is
// only overwritten with force. Stashing an empty list is a no-op.
func (l *TodoList) StashActive(force bool) Result {
	if len(l.Active) == 0 {
		return Result{Outcome: OutcomeApplied}
	}
	if len(l.Stashed) > 0 && !force {
		return Result{Outcome: OutcomeStashOccupied}
	}

	n := len(l.Active)
	l.Stashed = l.Active
	l.Active = []Todo{}
	return Result{Outcome: OutcomeApplied, Count: n}
}

// RestoreStashed replaces the active list with the stashed snapshot. It
// refuses while unfinished active todos exist.
func (l *TodoList) RestoreStashed() Result {
	if len(l.Stashed) == 0 {
		return Result{Outcome: OutcomeNothingStashed}
	}
	if len(l.Active) > 0 && !l.AllComplete() {
		return Result{Outcome: OutcomeActiveIncomplete}
	}

	n := len(l.Stashed)
	l.Active = l.Stashed
	l.Stashed = []Todo{}
	return Result{Outcome: OutcomeApplied, Count: n}
}

// ClearActive removes every active todo and returns how many were removed.
func (l *TodoList) ClearActive() int {
	n := len(l.Active)
	l.Active = []Todo{}
	return n
}

// ClearStashed drops the stashed snapshot and returns how many todos it held.
func (l *TodoList) ClearStashed() int {
	n := len(l.Stashed)
	l.Stashed = []Todo{}
	return n
}

// Contents returns the ordered content sequence of the active list.
func (l *TodoList) Contents() []string {
	out := make([]string, len(l.Active))
	for i, t := range l.Active {
		out[i] = t.Content
	}
	return out
}

// SameContents reports whether incoming reproduces the active content
// sequence exactly, ignoring statuses.
func (l *TodoList) SameContents(incoming []Todo) bool {
	if len(incoming) != len(l.Active) {
		return false
	}
	for i := range incoming {
		if incoming[i].Content != l.Active[i].Content {
			return false
		}
	}
	return true
}
