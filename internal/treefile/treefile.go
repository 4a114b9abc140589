// Package treefile loads syntax trees and method expectations from YAML
// documents. A document looks like:
//
//	types:
//	  - name: com/example/Counter
//	    source_file: Counter.java
//	    fields:
//	      - {name: count, type: int, volatile: true}
//	    methods:
//	      - name: increment
//	        signature: ()V
//	        lines: [{offset: 0, line: 12}]
//	        assert_warning: [VolatileIncrement]
//	        body:
//	          - op: PostIncrement
//	            offset: 4
//	            type: int
//	            field: {owner: com/example/Counter, name: count, type: int, volatile: true}
//	            args: [{op: Load, offset: 0, var: {name: this}}]
//
// Statements are expressions (an "op" key), "if" conditions, "while" loops
// or nested "block" lists.
package treefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/bugscan/internal/assertions"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

var (
	ErrUnknownOp     = errors.New("unknown op")
	ErrUnknownType   = errors.New("unknown type")
	ErrInvalidNode   = errors.New("invalid node")
	ErrDuplicateType = errors.New("duplicate type")
)

// -- Document Schema --

type fileDoc struct {
	Types []typeDoc `yaml:"types"`
}

type typeDoc struct {
	Name       string      `yaml:"name"`
	SourceFile string      `yaml:"source_file"`
	Fields     []fieldDoc  `yaml:"fields"`
	Methods    []methodDoc `yaml:"methods"`
}

type fieldDoc struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Static   bool   `yaml:"static"`
	Volatile bool   `yaml:"volatile"`
}

type methodDoc struct {
	Name      string    `yaml:"name"`
	Signature string    `yaml:"signature"`
	Static    bool      `yaml:"static"`
	Lines     []lineDoc `yaml:"lines"`
	Body      []nodeDoc `yaml:"body"`

	assertions.Expectations `yaml:",inline"`
}

type lineDoc struct {
	Offset int `yaml:"offset"`
	Line   int `yaml:"line"`
}

type nodeDoc struct {
	exprDoc `yaml:",inline"`

	If    *conditionDoc `yaml:"if"`
	While *loopDoc      `yaml:"while"`
	Block []nodeDoc     `yaml:"block"`
}

type exprDoc struct {
	Op     string     `yaml:"op"`
	Offset *int       `yaml:"offset"`
	Type   string     `yaml:"type"`
	Field  *fieldRef  `yaml:"field"`
	Method *methodRef `yaml:"method"`
	Var    *varRef    `yaml:"var"`
	Value  any        `yaml:"value"`
	Args   []exprDoc  `yaml:"args"`
}

type fieldRef struct {
	Owner    string `yaml:"owner"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Static   bool   `yaml:"static"`
	Volatile bool   `yaml:"volatile"`
}

type methodRef struct {
	Owner     string `yaml:"owner"`
	Name      string `yaml:"name"`
	Signature string `yaml:"signature"`
}

type varRef struct {
	Name  string `yaml:"name"`
	Index int    `yaml:"index"`
	Param bool   `yaml:"param"`
}

type conditionDoc struct {
	Cond *exprDoc  `yaml:"cond"`
	Then []nodeDoc `yaml:"then"`
	Else []nodeDoc `yaml:"else"`
}

type loopDoc struct {
	Cond *exprDoc  `yaml:"cond"`
	Body []nodeDoc `yaml:"body"`
}

// -- Loaded Documents --

// Document holds the types of one or more tree files and the expectations
// declared on their methods.
type Document struct {
	Types        []*syntax.TypeDef
	expectations map[string]assertions.Expectations
}

// Expectations returns what method m of t declares it must and must not report.
func (d *Document) Expectations(t *syntax.TypeDef, m *syntax.MethodDef) (assertions.Expectations, bool) {
	exp, ok := d.expectations[t.Ref(m)]
	return exp, ok
}

// Methods counts the methods across all types.
func (d *Document) Methods() int {
	n := 0
	for _, t := range d.Types {
		n += len(t.Methods)
	}
	return n
}

// LoadFiles reads every path, expanding a leading "~", and merges the
// results. A type declared in two files is an error.
func LoadFiles(paths ...string) (*Document, error) {
	merged := &Document{expectations: map[string]assertions.Expectations{}}
	seen := map[string]string{}
	for _, p := range paths {
		doc, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		for _, t := range doc.Types {
			if prev, dup := seen[t.InternalName]; dup {
				return nil, fmt.Errorf("%w: %s in %s and %s", ErrDuplicateType, t.InternalName, prev, p)
			}
			seen[t.InternalName] = p
			merged.Types = append(merged.Types, t)
		}
		for ref, exp := range doc.expectations {
			merged.expectations[ref] = exp
		}
	}
	return merged, nil
}

// LoadFile reads a single tree file.
func LoadFile(path string) (*Document, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", path, err)
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("opening tree file: %w", err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", expanded, err)
	}
	return doc, nil
}

// Parse decodes a tree document. Unknown keys are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var raw fileDoc
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}

	doc := &Document{expectations: map[string]assertions.Expectations{}}
	for _, td := range raw.Types {
		t, err := buildType(td, doc.expectations)
		if err != nil {
			return nil, err
		}
		doc.Types = append(doc.Types, t)
	}
	return doc, nil
}

// -- Builders --

func buildType(td typeDoc, expectations map[string]assertions.Expectations) (*syntax.TypeDef, error) {
	if td.Name == "" {
		return nil, fmt.Errorf("%w: type without a name", ErrInvalidNode)
	}
	t := &syntax.TypeDef{InternalName: td.Name, SourceFile: td.SourceFile}

	for _, fd := range td.Fields {
		typ, err := parseType(fd.Type)
		if err != nil {
			return nil, fmt.Errorf("type %s: field %s: %w", td.Name, fd.Name, err)
		}
		t.Fields = append(t.Fields, &syntax.FieldDef{Name: fd.Name, Type: typ, Static: fd.Static, Volatile: fd.Volatile})
	}

	for _, md := range td.Methods {
		m := &syntax.MethodDef{Name: md.Name, Signature: md.Signature, Static: md.Static}
		for _, ld := range md.Lines {
			m.Lines = append(m.Lines, syntax.LineEntry{Offset: ld.Offset, Line: ld.Line})
		}
		body, err := buildBlock(md.Body)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", t.Ref(m), err)
		}
		m.Body = body
		t.Methods = append(t.Methods, m)
		if !md.Expectations.IsZero() {
			expectations[t.Ref(m)] = md.Expectations
		}
	}
	return t, nil
}

func buildBlock(nodes []nodeDoc) (*syntax.Block, error) {
	b := &syntax.Block{Body: make([]syntax.Node, 0, len(nodes))}
	for i, nd := range nodes {
		n, err := buildNode(nd)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		b.Body = append(b.Body, n)
	}
	return b, nil
}

func buildNode(nd nodeDoc) (syntax.Node, error) {
	set := 0
	for _, present := range []bool{nd.Op != "", nd.If != nil, nd.While != nil, nd.Block != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: a statement needs exactly one of op, if, while or block", ErrInvalidNode)
	}

	switch {
	case nd.If != nil:
		return buildCondition(nd.If)
	case nd.While != nil:
		return buildLoop(nd.While)
	case nd.Block != nil:
		return buildBlock(nd.Block)
	default:
		return buildExpr(nd.exprDoc)
	}
}

func buildCondition(cd *conditionDoc) (*syntax.Condition, error) {
	if cd.Cond == nil {
		return nil, fmt.Errorf("%w: if without cond", ErrInvalidNode)
	}
	cond, err := buildExpr(*cd.Cond)
	if err != nil {
		return nil, fmt.Errorf("if cond: %w", err)
	}
	c := &syntax.Condition{Cond: cond}
	if c.Then, err = buildBlock(cd.Then); err != nil {
		return nil, fmt.Errorf("then: %w", err)
	}
	if cd.Else != nil {
		if c.Else, err = buildBlock(cd.Else); err != nil {
			return nil, fmt.Errorf("else: %w", err)
		}
	}
	return c, nil
}

func buildLoop(ld *loopDoc) (*syntax.Loop, error) {
	l := &syntax.Loop{}
	var err error
	if ld.Cond != nil {
		if l.Cond, err = buildExpr(*ld.Cond); err != nil {
			return nil, fmt.Errorf("while cond: %w", err)
		}
	}
	if l.Body, err = buildBlock(ld.Body); err != nil {
		return nil, fmt.Errorf("while body: %w", err)
	}
	return l, nil
}

func buildExpr(ed exprDoc) (*syntax.Expression, error) {
	op, ok := syntax.ParseOp(ed.Op)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, ed.Op)
	}
	typ, err := parseType(ed.Type)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ed.Op, err)
	}

	e := &syntax.Expression{Op: op, Offset: syntax.NoOffset, Type: typ}
	if ed.Offset != nil {
		e.Offset = *ed.Offset
	}

	operands := 0
	if ed.Field != nil {
		operands++
		ft, err := parseType(ed.Field.Type)
		if err != nil {
			return nil, fmt.Errorf("%s field %s: %w", ed.Op, ed.Field.Name, err)
		}
		e.Operand = &syntax.FieldRef{
			Owner:    ed.Field.Owner,
			Name:     ed.Field.Name,
			Type:     ft,
			Static:   ed.Field.Static,
			Volatile: ed.Field.Volatile,
		}
	}
	if ed.Method != nil {
		operands++
		e.Operand = &syntax.MethodRef{Owner: ed.Method.Owner, Name: ed.Method.Name, Signature: ed.Method.Signature}
	}
	if ed.Var != nil {
		operands++
		e.Operand = &syntax.Variable{Name: ed.Var.Name, Index: ed.Var.Index, Parameter: ed.Var.Param}
	}
	if op == syntax.OpLdc {
		operands++
		c, ctype, err := constant(ed.Value, typ)
		if err != nil {
			return nil, err
		}
		e.Operand = c
		e.Type = ctype
	}
	if operands > 1 {
		return nil, fmt.Errorf("%w: %s has more than one operand", ErrInvalidNode, ed.Op)
	}

	for i, ad := range ed.Args {
		arg, err := buildExpr(ad)
		if err != nil {
			return nil, fmt.Errorf("%s arg %d: %w", ed.Op, i, err)
		}
		e.Args = append(e.Args, arg)
	}
	return e, nil
}

// constant normalizes a YAML scalar for its declared type. Without a type the
// scalar's own kind decides. Float constants are rounded to single precision.
func constant(v any, declared syntax.JvmType) (syntax.Constant, syntax.JvmType, error) {
	var num float64
	isNum := true
	switch x := v.(type) {
	case int:
		num = float64(x)
	case int64:
		num = float64(x)
	case uint64:
		num = float64(x)
	case float64:
		num = x
	default:
		isNum = false
	}

	switch declared {
	case syntax.TypeFloat:
		if !isNum {
			return syntax.Constant{}, 0, fmt.Errorf("%w: float constant %v", ErrInvalidNode, v)
		}
		return syntax.Constant{Value: float64(float32(num))}, declared, nil
	case syntax.TypeDouble:
		if !isNum {
			return syntax.Constant{}, 0, fmt.Errorf("%w: double constant %v", ErrInvalidNode, v)
		}
		return syntax.Constant{Value: num}, declared, nil
	case syntax.TypeByte, syntax.TypeChar, syntax.TypeShort, syntax.TypeInt, syntax.TypeLong:
		i, ok := integer(v)
		if !ok {
			return syntax.Constant{}, 0, fmt.Errorf("%w: %s constant %v", ErrInvalidNode, declared, v)
		}
		return syntax.Constant{Value: i}, declared, nil
	}

	switch x := v.(type) {
	case nil:
		return syntax.Constant{}, syntax.TypeObject, nil
	case bool:
		return syntax.Constant{Value: x}, syntax.TypeBoolean, nil
	case string:
		return syntax.Constant{Value: x}, syntax.TypeObject, nil
	case float64:
		return syntax.Constant{Value: x}, syntax.TypeDouble, nil
	}
	if i, ok := integer(v); ok {
		return syntax.Constant{Value: i}, syntax.TypeInt, nil
	}
	return syntax.Constant{}, 0, fmt.Errorf("%w: unsupported constant %v", ErrInvalidNode, v)
}

func integer(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	}
	return 0, false
}

func parseType(name string) (syntax.JvmType, error) {
	t, ok := syntax.ParseType(name)
	if !ok {
		return syntax.TypeNone, fmt.Errorf("%w: %q", ErrUnknownType, strings.TrimSpace(name))
	}
	return t, nil
}
