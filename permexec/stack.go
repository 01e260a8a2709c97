package permexec

import "github.com/speakeasy-api/jsonvpa"

// frame is pushed on every call symbol and popped on the matching return.
type frame struct {
	before []Pair         // Frontier before the call
	call   jsonvpa.Symbol // Call symbol that opened the frame
	seen   Bitset         // Key indices read in this object
	reject Bitset         // Node IDs proven inconsistent with this object
	key    jsonvpa.Symbol // Key currently being read, empty for arrays and {}
}

func (f *frame) isObject(alpha *jsonvpa.Alphabet) bool { return f.call == alpha.ObjectOpen }

// frameStack implements a simple stack of frames.
type frameStack struct {
	data []*frame
}

// newFrameStack creates a new frame stack.
func newFrameStack() *frameStack {
	return &frameStack{
		data: make([]*frame, 0, 16),
	}
}

// push adds a frame to the top of the stack.
func (s *frameStack) push(f *frame) {
	s.data = append(s.data, f)
}

// pop removes and returns the top frame.
// Panics if stack is empty.
func (s *frameStack) pop() *frame {
	if len(s.data) == 0 {
		panic("frame stack underflow")
	}
	f := s.data[len(s.data)-1]
	s.data[len(s.data)-1] = nil
	s.data = s.data[:len(s.data)-1]
	return f
}

// top returns the top frame without removing it, or nil if the stack is empty.
func (s *frameStack) top() *frame {
	if len(s.data) == 0 {
		return nil
	}
	return s.data[len(s.data)-1]
}

// empty checks if the stack is empty.
func (s *frameStack) empty() bool {
	return len(s.data) == 0
}

// len returns the number of frames on the stack.
func (s *frameStack) len() int {
	return len(s.data)
}
