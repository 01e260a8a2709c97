package permexec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/speakeasy-api/jsonvpa"
)

var (
	// ErrAborted is returned when a relation build, key graph build or
	// exact-cover search stops before finishing, either because its context
	// was cancelled or because a configured bound was hit. An aborted result
	// says nothing about acceptance.
	ErrAborted = errors.New("computation aborted")

	// ErrCoverLimit is returned when an exact-cover search visits more than
	// Options.MaxCoverStates search states. It wraps ErrAborted.
	ErrCoverLimit = fmt.Errorf("%w: exact-cover state limit exceeded", ErrAborted)

	// ErrNilAutomaton is returned when a constructor is given no automaton.
	ErrNilAutomaton = errors.New("automaton is nil")

	// ErrIncompleteRelation is returned when a key graph is requested over a
	// relation whose build was aborted.
	ErrIncompleteRelation = errors.New("reachability relation is incomplete")

	// ErrNilKeyGraph is returned by NewValidator when no key graph is given.
	ErrNilKeyGraph = errors.New("key graph is nil")
)

// InvalidGraphError reports that an automaton's key graph admits a path on
// which one key is read twice, so its permutation-tolerant reading is
// ambiguous. Witness is a document the automaton accepts that exhibits it.
type InvalidGraphError struct {
	Witness []jsonvpa.Symbol
	First   Node
	Second  Node
}

func (e *InvalidGraphError) Error() string {
	parts := make([]string, len(e.Witness))
	for i, s := range e.Witness {
		parts[i] = string(s)
	}
	return fmt.Sprintf("key graph is invalid: key %q is read by %s and again by %s on one path; witness: %s",
		e.First.Key, e.First, e.Second, strings.Join(parts, " "))
}

// abortErr wraps a context error so that both ErrAborted and the context's
// own error match with errors.Is.
func abortErr(what string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrAborted, what, cause)
}
