package syntax

import "reflect"

// Chain is the list of ancestors of a node, innermost first.
type Chain struct {
	Node   Node
	Parent *Chain
}

// Root returns the outermost node of the chain.
func (c *Chain) Root() Node {
	if c == nil {
		return nil
	}
	for c.Parent != nil {
		c = c.Parent
	}
	return c.Node
}

// Depth returns the number of ancestors.
func (c *Chain) Depth() int {
	n := 0
	for ; c != nil; c = c.Parent {
		n++
	}
	return n
}

// Walk visits root and every descendant in pre-order: a node is visited before
// its children, and children are visited in the order Children returns them.
// The order depends only on the tree's structure, never on how it is stored.
// Returning false from fn stops the walk.
func Walk(root Node, fn func(n Node, parents *Chain) bool) {
	if isNil(root) {
		return
	}
	walk(root, nil, fn)
}

func walk(n Node, parents *Chain, fn func(Node, *Chain) bool) bool {
	if !fn(n, parents) {
		return false
	}
	children := n.Children()
	if len(children) == 0 {
		return true
	}
	chain := &Chain{Node: n, Parent: parents}
	for _, c := range children {
		if isNil(c) {
			continue
		}
		if !walk(c, chain, fn) {
			return false
		}
	}
	return true
}

// isNil catches typed nil pointers stored in a Node interface.
func isNil(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Equivalent reports whether two expressions are structurally identical,
// ignoring offsets.
func Equivalent(a, b *Expression) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Op != b.Op || a.Type != b.Type || len(a.Args) != len(b.Args) {
		return false
	}
	if !sameOperand(a.Operand, b.Operand) {
		return false
	}
	for i := range a.Args {
		if !Equivalent(a.Args[i], b.Args[i]) {
			return false
		}
	}
	return true
}

func sameOperand(a, b Operand) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case *FieldRef:
		y, ok := b.(*FieldRef)
		return ok && x.SameField(y)
	case *MethodRef:
		y, ok := b.(*MethodRef)
		return ok && *x == *y
	case *Variable:
		y, ok := b.(*Variable)
		return ok && x.Name == y.Name && x.Index == y.Index
	case Constant:
		y, ok := b.(Constant)
		return ok && x.Value == y.Value
	}
	return false
}

// Receiver returns the object a field access is performed on, or nil for
// static accesses.
func Receiver(e *Expression) *Expression {
	if e == nil {
		return nil
	}
	switch e.Op {
	case OpGetField, OpPutField:
		return e.Arg(0)
	}
	return nil
}
