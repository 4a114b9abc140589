// Package syntax models the typed syntax tree of a decompiled method body.
// Trees are built by an external provider and are read-only once built.
package syntax

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/bugscan/api/schemas"
)

// NoOffset marks an expression that does not correspond to a bytecode instruction.
const NoOffset = schemas.NoOffset

// Node is a node of a method's syntax tree. The set of implementations is closed.
type Node interface {
	// Children returns the direct children in traversal order.
	Children() []Node
	node()
}

// -- Operands --

// Operand is the static operand of an expression. Implementations are
// *FieldRef, *MethodRef, *Variable and Constant.
type Operand interface {
	operand()
}

// FieldRef references a field declared on Owner.
type FieldRef struct {
	Owner    string
	Name     string
	Type     JvmType
	Static   bool
	Volatile bool
}

func (*FieldRef) operand() {}

// Member converts the reference into annotation evidence.
func (f *FieldRef) Member() schemas.MemberRef {
	return schemas.MemberRef{Owner: f.Owner, Name: f.Name, Descriptor: f.Type.String()}
}

// SameField reports whether both references resolve to the same field.
func (f *FieldRef) SameField(other *FieldRef) bool {
	if f == nil || other == nil {
		return false
	}
	return f.Owner == other.Owner && f.Name == other.Name
}

// MethodRef references a method by owner, name and descriptor.
type MethodRef struct {
	Owner     string
	Name      string
	Signature string
}

func (*MethodRef) operand() {}

func (m *MethodRef) Member() schemas.MemberRef {
	return schemas.MemberRef{Owner: m.Owner, Name: m.Name, Descriptor: m.Signature}
}

// Variable is a local variable or parameter slot.
type Variable struct {
	Name      string
	Index     int
	Parameter bool
}

func (*Variable) operand() {}

// Constant is a literal operand. Value is an int64, float64, string, bool or nil.
type Constant struct {
	Value any
}

func (Constant) operand() {}

// Float returns the constant as a float64 if it is numeric.
func (c Constant) Float() (float64, bool) {
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// -- Nodes --

// Expression is a typed operation with operand and argument expressions.
type Expression struct {
	Op      Op
	Offset  int
	Operand Operand
	Args    []*Expression
	// Type is the inferred type of the value the expression produces.
	Type JvmType
}

func (*Expression) node() {}

func (e *Expression) Children() []Node {
	if len(e.Args) == 0 {
		return nil
	}
	out := make([]Node, len(e.Args))
	for i, a := range e.Args {
		out[i] = a
	}
	return out
}

// Arg returns the i-th argument or nil if there is none.
func (e *Expression) Arg(i int) *Expression {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// Field returns the field operand, if any.
func (e *Expression) Field() *FieldRef {
	f, _ := e.Operand.(*FieldRef)
	return f
}

// Method returns the method operand, if any.
func (e *Expression) Method() *MethodRef {
	m, _ := e.Operand.(*MethodRef)
	return m
}

// Variable returns the variable operand, if any.
func (e *Expression) Variable() *Variable {
	v, _ := e.Operand.(*Variable)
	return v
}

// Constant returns the literal operand of an Ldc expression.
func (e *Expression) Constant() (Constant, bool) {
	if e == nil || e.Op != OpLdc {
		return Constant{}, false
	}
	c, ok := e.Operand.(Constant)
	return c, ok
}

func (e *Expression) String() string {
	var b strings.Builder
	b.WriteString(e.Op.String())
	switch op := e.Operand.(type) {
	case *FieldRef:
		fmt.Fprintf(&b, ":%s.%s", op.Owner, op.Name)
	case *MethodRef:
		fmt.Fprintf(&b, ":%s.%s%s", op.Owner, op.Name, op.Signature)
	case *Variable:
		fmt.Fprintf(&b, ":%s", op.Name)
	case Constant:
		fmt.Fprintf(&b, ":%v", op.Value)
	}
	if len(e.Args) > 0 {
		b.WriteByte('(')
		for i, a := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Block is an ordered list of statements.
type Block struct {
	Body []Node
}

func (*Block) node() {}

func (b *Block) Children() []Node { return b.Body }

// Condition is an if/else construct. Else may be nil.
type Condition struct {
	Cond *Expression
	Then *Block
	Else *Block
}

func (*Condition) node() {}

func (c *Condition) Children() []Node {
	out := []Node{c.Cond}
	if c.Then != nil {
		out = append(out, c.Then)
	}
	if c.Else != nil {
		out = append(out, c.Else)
	}
	return out
}

// Loop is a pre-tested loop. Cond is nil for an unconditional loop.
type Loop struct {
	Cond *Expression
	Body *Block
}

func (*Loop) node() {}

func (l *Loop) Children() []Node {
	var out []Node
	if l.Cond != nil {
		out = append(out, l.Cond)
	}
	if l.Body != nil {
		out = append(out, l.Body)
	}
	return out
}

// -- Declarations --

// LineEntry maps the instructions starting at Offset to a source line.
type LineEntry struct {
	Offset int
	Line   int
}

// LineTable is an offset to line mapping. A nil table means no line information.
type LineTable []LineEntry

// MethodDef is a method with its decompiled body.
type MethodDef struct {
	Name      string
	Signature string
	Static    bool
	Body      *Block
	Lines     LineTable
}

// FieldDef is a field declaration.
type FieldDef struct {
	Name     string
	Type     JvmType
	Static   bool
	Volatile bool
}

// TypeDef is a class with its fields and methods.
type TypeDef struct {
	InternalName string
	SourceFile   string
	Fields       []*FieldDef
	Methods      []*MethodDef
}

// Ref returns a stable identifier for a method of the type, e.g.
// "com/example/Foo.bar(I)V".
func (t *TypeDef) Ref(m *MethodDef) string {
	owner := ""
	if t != nil {
		owner = t.InternalName
	}
	return owner + "." + m.Name + m.Signature
}

// Member returns the annotation evidence identifying the method m of t.
func (t *TypeDef) Member(m *MethodDef) schemas.MemberRef {
	owner := ""
	if t != nil {
		owner = t.InternalName
	}
	return schemas.MemberRef{Owner: owner, Name: m.Name, Descriptor: m.Signature}
}

// Field looks up a declared field by name.
func (t *TypeDef) Field(name string) *FieldDef {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}
