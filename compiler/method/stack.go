package method

import (
	"strings"

	"github.com/pgavlin/cil2tac/cil"
	"github.com/pgavlin/cil2tac/compiler/tac"
)

// A StackEntry is one simulated evaluation-stack slot: the static type of the value and the
// variable currently holding it.
type StackEntry struct {
	Type *cil.Type
	Var  tac.Var
}

func (e StackEntry) Category() cil.Category {
	return cil.CategoryOf(e.Type)
}

func (e StackEntry) String() string {
	return e.Var.String() + ":" + e.Type.FullName()
}

// Stack is a PseudoStack snapshot. The last entry is the top of the stack. Snapshots are never
// mutated in place; the operations return new stacks.
type Stack []StackEntry

// Depth returns the number of entries on the stack.
func (s Stack) Depth() int {
	return len(s)
}

// Peek returns the entry at the given depth. Depth 0 is the top of the stack.
func (s Stack) Peek(depth int) StackEntry {
	return s[len(s)-1-depth]
}

// Top returns the top n entries in push order.
func (s Stack) Top(n int) []StackEntry {
	return s[len(s)-n:]
}

// Pop returns the stack with the top n entries removed.
func (s Stack) Pop(n int) Stack {
	return s[:len(s)-n:len(s)-n]
}

// Push returns the stack with the given entries pushed in order.
func (s Stack) Push(entries ...StackEntry) Stack {
	out := make(Stack, len(s), len(s)+len(entries))
	copy(out, s)
	return append(out, entries...)
}

// Rotate returns the stack with the entry at the given depth moved to the top.
func (s Stack) Rotate(depth int) Stack {
	out := make(Stack, 0, len(s))
	i := len(s) - 1 - depth
	out = append(out, s[:i]...)
	out = append(out, s[i+1:]...)
	return append(out, s[i])
}

// MoveTo returns the stack with the top entry moved to the given depth.
func (s Stack) MoveTo(depth int) Stack {
	top, rest := s[len(s)-1], s[:len(s)-1]
	i := len(rest) - depth
	out := make(Stack, 0, len(s))
	out = append(out, rest[:i]...)
	out = append(out, top)
	return append(out, rest[i:]...)
}

func (s Stack) String() string {
	entries := make([]string, len(s))
	for i, e := range s {
		entries[i] = e.String()
	}
	return "[" + strings.Join(entries, " ") + "]"
}
