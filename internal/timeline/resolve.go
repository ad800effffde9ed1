package timeline

// Action is what the resolver does to an existing item that collides with a candidate.
type Action int

const (
	// ActionNone leaves the item untouched.
	ActionNone Action = iota
	// ActionRemove deactivates an item the candidate fully covers, or whose
	// remainder after a left trim would start at or after midnight.
	ActionRemove
	// ActionTrimStart moves the item's start to the candidate's end.
	ActionTrimStart
	// ActionTrimEnd cuts the item off where the candidate starts.
	ActionTrimEnd
	// ActionSplit keeps only the part before the candidate; the tail is dropped.
	ActionSplit
)

func (a Action) String() string {
	switch a {
	case ActionRemove:
		return "remove"
	case ActionTrimStart:
		return "trim_start"
	case ActionTrimEnd:
		return "trim_end"
	case ActionSplit:
		return "split"
	default:
		return "none"
	}
}

// Adjustment records the new extent of an existing item that was shortened.
type Adjustment struct {
	ItemID      int
	Action      Action
	OldStart    TimeOfDay
	OldDuration int
	NewStart    TimeOfDay
	NewDuration int
}

// Plan is the set of mutations needed to admit a candidate.
type Plan struct {
	Adjusted []Adjustment
	Removed  []int
}

// Empty reports whether the candidate collides with nothing.
func (p Plan) Empty() bool { return len(p.Adjusted) == 0 && len(p.Removed) == 0 }

// Classify decides how the existing slot gives way to the candidate on the
// time axis alone. Callers must check Conflicts first.
func Classify(candidate, existing Slot) (Action, Adjustment) {
	nS, nE := candidate.Start, candidate.End()
	eS, eE := existing.Start, existing.End()

	adj := Adjustment{OldStart: eS, OldDuration: existing.Duration}
	switch {
	case nS <= eS && nE >= eE:
		adj.Action = ActionRemove
	case nS <= eS && nE >= SecondsPerDay:
		// the remainder would start on the next day, which no item can do
		adj.Action = ActionRemove
	case nS <= eS:
		adj.Action = ActionTrimStart
		adj.NewStart, adj.NewDuration = nE, int(eE-nE)
	case nE >= eE:
		adj.Action = ActionTrimEnd
		adj.NewStart, adj.NewDuration = eS, int(nS-eS)
	default:
		adj.Action = ActionSplit
		adj.NewStart, adj.NewDuration = eS, int(nS-eS)
	}
	return adj.Action, adj
}

// Resolve computes the plan that gives the candidate unconditional priority
// over the existing items. The candidate itself is never altered. Inactive
// items and items that do not conflict on every axis are left alone. Results
// follow the order of existing.
func Resolve(candidate Slot, existing []Item) Plan {
	var plan Plan
	for _, it := range existing {
		if !it.Active || !Conflicts(candidate, it.Slot) {
			continue
		}
		action, adj := Classify(candidate, it.Slot)
		if action == ActionRemove {
			plan.Removed = append(plan.Removed, it.ID)
			continue
		}
		adj.ItemID = it.ID
		plan.Adjusted = append(plan.Adjusted, adj)
	}
	return plan
}
