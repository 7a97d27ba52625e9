// Package history keeps the linear undo/redo history of an editing session.
package history

import "creative-studio-backend/internal/models"

// Store is an undo/redo stack with a current position. Position -1 means
// "before the first state". Store is not safe for concurrent use.
type Store struct {
	states []models.HistoryState
	pos    int
}

// New returns an empty store positioned before the first state.
func New() *Store {
	return &Store{pos: -1}
}

// Push drops every state after the current position, appends state and
// moves the position onto it.
func (s *Store) Push(state models.HistoryState) {
	s.states = append(s.states[:s.pos+1], state)
	s.pos = len(s.states) - 1
}

func (s *Store) CanUndo() bool { return s.pos >= 0 }

func (s *Store) CanRedo() bool { return s.pos < len(s.states)-1 }

// Undo moves the position back by one. It reports false and does nothing
// when CanUndo is false.
func (s *Store) Undo() bool {
	if !s.CanUndo() {
		return false
	}
	s.pos--
	return true
}

// Redo moves the position forward by one. It reports false and does
// nothing when CanRedo is false.
func (s *Store) Redo() bool {
	if !s.CanRedo() {
		return false
	}
	s.pos++
	return true
}

// JumpTo moves the position onto the state with the given id.
func (s *Store) JumpTo(id string) (models.HistoryState, bool) {
	for i, st := range s.states {
		if st.ID == id {
			s.pos = i
			return st, true
		}
	}
	return models.HistoryState{}, false
}

// At returns the state at index i.
func (s *Store) At(i int) (models.HistoryState, bool) {
	if i < 0 || i >= len(s.states) {
		return models.HistoryState{}, false
	}
	return s.states[i], true
}

// Current returns the state at the current position.
func (s *Store) Current() (models.HistoryState, bool) {
	return s.At(s.pos)
}

func (s *Store) Position() int { return s.pos }

func (s *Store) Len() int { return len(s.states) }

// States returns a copy of every state, including those after the position.
func (s *Store) States() []models.HistoryState {
	out := make([]models.HistoryState, len(s.states))
	copy(out, s.states)
	return out
}

// Reset empties the store.
func (s *Store) Reset() {
	s.states = nil
	s.pos = -1
}
