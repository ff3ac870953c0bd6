// Package store holds the application state of a mounted page: a single map
// replaced by a reducer on every dispatched action.
//
// A Store is seeded with a deep copy of the initial state and dispatches
// ActionInit through the reducer before New returns. Middleware wraps
// Dispatch in the order given; the first middleware sees an action first.
package store

import (
	"errors"
	"sync"

	"github.com/goliatone/go-bootstate/layering"
)

// ActionInit is dispatched once by New.
const ActionInit = "@@bootstate/INIT"

var (
	// ErrNilReducer indicates New was called without a reducer.
	ErrNilReducer = errors.New("store: reducer must be provided")
	// ErrInvalidAction indicates an action reached the reducer without a
	// type, or a value that is not an Action.
	ErrInvalidAction = errors.New("store: actions must be Action values with a type")
	// ErrDispatchInProgress indicates Dispatch was called while the reducer
	// was running.
	ErrDispatchInProgress = errors.New("store: reducers may not dispatch actions")
)

// Action is a plain state transition request.
type Action struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Reducer returns the next state for action. It receives a copy of the
// current state and may modify it.
type Reducer func(state map[string]any, action Action) map[string]any

// Dispatch sends an action through the middleware chain.
type Dispatch func(action any) (any, error)

// API is what middleware sees of the store.
type API struct {
	Dispatch Dispatch
	GetState func() map[string]any
}

// Middleware wraps the next dispatch function.
type Middleware func(api API) func(next Dispatch) Dispatch

// Identity is a reducer that keeps the state unchanged.
func Identity(state map[string]any, _ Action) map[string]any {
	return state
}

// Store is safe for concurrent reads. Dispatch calls must not overlap: a
// dispatch issued while the reducer runs returns ErrDispatchInProgress.
type Store struct {
	mu          sync.Mutex
	reducer     Reducer
	state       map[string]any
	dispatching bool
	listeners   []*listener
	dispatch    Dispatch
}

type listener struct {
	fn     func()
	active bool
}

// New seeds a store with a copy of initial and runs ActionInit.
func New(reducer Reducer, initial map[string]any, middleware ...Middleware) (*Store, error) {
	if reducer == nil {
		return nil, ErrNilReducer
	}
	s := &Store{
		reducer: reducer,
		state:   layering.CloneMap(initial),
	}
	if s.state == nil {
		s.state = map[string]any{}
	}

	s.dispatch = s.baseDispatch
	if len(middleware) > 0 {
		api := API{
			Dispatch: func(action any) (any, error) { return s.Dispatch(action) },
			GetState: s.GetState,
		}
		dispatch := Dispatch(s.baseDispatch)
		for i := len(middleware) - 1; i >= 0; i-- {
			if middleware[i] == nil {
				continue
			}
			dispatch = middleware[i](api)(dispatch)
		}
		s.dispatch = dispatch
	}

	if _, err := s.baseDispatch(Action{Type: ActionInit}); err != nil {
		return nil, err
	}
	return s, nil
}

// Dispatch runs action through the middleware chain and the reducer, then
// notifies subscribers in subscription order. It returns the value produced
// by the chain, the action itself when no middleware intervenes.
func (s *Store) Dispatch(action any) (any, error) {
	return s.dispatch(action)
}

func (s *Store) baseDispatch(raw any) (any, error) {
	action, ok := asAction(raw)
	if !ok || action.Type == "" {
		return nil, ErrInvalidAction
	}

	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		return nil, ErrDispatchInProgress
	}
	s.dispatching = true
	current := layering.CloneMap(s.state)
	s.mu.Unlock()

	next := s.reduce(current, action)

	s.mu.Lock()
	s.state = next
	s.dispatching = false
	listeners := make([]*listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		s.mu.Lock()
		active := l.active
		s.mu.Unlock()
		if active {
			l.fn()
		}
	}
	return action, nil
}

func (s *Store) reduce(current map[string]any, action Action) (next map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.dispatching = false
			s.mu.Unlock()
			panic(r)
		}
	}()
	next = layering.CloneMap(s.reducer(current, action))
	if next == nil {
		next = map[string]any{}
	}
	return next
}

// GetState returns a deep copy of the current state.
func (s *Store) GetState() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return layering.CloneMap(s.state)
}

// Subscribe registers fn to run after every dispatch. The returned function
// removes it and is safe to call more than once.
func (s *Store) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	l := &listener{fn: fn, active: true}
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !l.active {
			return
		}
		l.active = false
		for i, candidate := range s.listeners {
			if candidate == l {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				break
			}
		}
	}
}

func asAction(raw any) (Action, bool) {
	switch typed := raw.(type) {
	case Action:
		return typed, true
	case *Action:
		if typed == nil {
			return Action{}, false
		}
		return *typed, true
	default:
		return Action{}, false
	}
}
