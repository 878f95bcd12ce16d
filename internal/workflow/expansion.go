package workflow

import "sort"

// ExpansionSet tracks which task cards are expanded on the board. It is view
// state only and never touches the workflow.
type ExpansionSet map[string]struct{}

// NewExpansionSet returns a set with ids expanded.
func NewExpansionSet(ids ...string) ExpansionSet {
	s := make(ExpansionSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Toggle flips membership of taskID and reports whether it is now expanded.
func (s ExpansionSet) Toggle(taskID string) bool {
	if _, ok := s[taskID]; ok {
		delete(s, taskID)
		return false
	}
	s[taskID] = struct{}{}
	return true
}

// Expanded reports whether taskID is expanded.
func (s ExpansionSet) Expanded(taskID string) bool {
	_, ok := s[taskID]
	return ok
}

// IDs returns the expanded ids sorted.
func (s ExpansionSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
