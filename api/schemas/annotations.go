package schemas

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// -- Annotation Schemas --

// Role tags an Annotation and decides which of its payload fields is meaningful.
type Role string

const (
	RoleType            Role = "TYPE"             // Text holds the enclosing type's internal name.
	RoleSourceFile      Role = "SOURCE_FILE"      // Text holds the source file name.
	RoleMethod          Role = "METHOD"           // Member identifies the analyzed method.
	RoleVariable        Role = "VARIABLE"         // Text holds the local variable name.
	RoleField           Role = "FIELD"            // Member identifies the field.
	RoleReturnValue     Role = "RETURN_VALUE_OF"  // Member identifies the invoked method.
	RoleNumber          Role = "NUMBER"           // Number holds the literal.
	RoleReplacement     Role = "REPLACEMENT"      // Member identifies the suggested replacement.
	RoleLocation        Role = "LOCATION"         // Location is the best location of a finding.
	RoleAnotherInstance Role = "ANOTHER_INSTANCE" // Location is an additional occurrence.
)

// MemberRef identifies a field or method by owner, name and descriptor.
type MemberRef struct {
	Owner      string `json:"owner"`
	Name       string `json:"name"`
	Descriptor string `json:"descriptor,omitempty"`
}

func (m MemberRef) String() string {
	owner := strings.ReplaceAll(m.Owner, "/", ".")
	if strings.HasPrefix(m.Descriptor, "(") {
		return owner + "." + m.Name + m.Descriptor
	}
	return owner + "." + m.Name
}

// Number is a literal captured as evidence. It is kept as canonical text so that
// equality is well defined for every value, NaN included.
type Number struct {
	Kind    string `json:"kind"`
	Literal string `json:"literal"`
}

// IntNumber returns the Number for an integral literal of the given JVM kind.
func IntNumber(kind string, v int64) Number {
	return Number{Kind: kind, Literal: strconv.FormatInt(v, 10)}
}

// FloatNumber returns the Number for a floating point literal of the given JVM kind.
func FloatNumber(kind string, v float64) Number {
	switch {
	case math.IsNaN(v):
		return Number{Kind: kind, Literal: "NaN"}
	case math.IsInf(v, 1):
		return Number{Kind: kind, Literal: "Infinity"}
	case math.IsInf(v, -1):
		return Number{Kind: kind, Literal: "-Infinity"}
	}
	bits := 64
	if kind == "float" {
		bits = 32
	}
	return Number{Kind: kind, Literal: strconv.FormatFloat(v, 'g', -1, bits)}
}

// Annotation is one typed item of evidence. The struct is comparable and its
// constructors only populate the payload of their Role, so two annotations are
// equal exactly when their role and payload are equal.
type Annotation struct {
	Role     Role
	Text     string
	Member   MemberRef
	Number   Number
	Location Location
}

func ForType(internalName string) Annotation {
	return Annotation{Role: RoleType, Text: internalName}
}

func ForSourceFile(name string) Annotation {
	return Annotation{Role: RoleSourceFile, Text: name}
}

func ForMethod(m MemberRef) Annotation {
	return Annotation{Role: RoleMethod, Member: m}
}

func ForVariable(name string) Annotation {
	return Annotation{Role: RoleVariable, Text: name}
}

func ForField(m MemberRef) Annotation {
	return Annotation{Role: RoleField, Member: m}
}

func ForReturnValue(m MemberRef) Annotation {
	return Annotation{Role: RoleReturnValue, Member: m}
}

func ForNumber(n Number) Annotation {
	return Annotation{Role: RoleNumber, Number: n}
}

func ForReplacement(m MemberRef) Annotation {
	return Annotation{Role: RoleReplacement, Member: m}
}

func ForLocation(loc Location) Annotation {
	return Annotation{Role: RoleLocation, Location: loc}
}

func ForAnotherInstance(loc Location) Annotation {
	return Annotation{Role: RoleAnotherInstance, Location: loc}
}

// payload returns the meaningful part of the annotation for its role.
func (a Annotation) payload() any {
	switch a.Role {
	case RoleType, RoleSourceFile, RoleVariable:
		return a.Text
	case RoleMethod, RoleField, RoleReturnValue, RoleReplacement:
		return a.Member
	case RoleNumber:
		return a.Number
	case RoleLocation, RoleAnotherInstance:
		return a.Location
	default:
		return nil
	}
}

func (a Annotation) String() string {
	switch p := a.payload().(type) {
	case Number:
		return fmt.Sprintf("%s=%s", a.Role, p.Literal)
	case nil:
		return string(a.Role)
	default:
		return fmt.Sprintf("%s=%v", a.Role, p)
	}
}

// MarshalJSON encodes the annotation as {"role": ..., "value": ...}.
func (a Annotation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Role  Role `json:"role"`
		Value any  `json:"value,omitempty"`
	}{Role: a.Role, Value: a.payload()})
}

// AnnotationSet is an ordered sequence of annotations. Order is significant.
type AnnotationSet []Annotation

// Equal reports whether both sets hold equal annotations in the same order.
func (s AnnotationSet) Equal(other AnnotationSet) bool {
	return slices.Equal(s, other)
}

// Clone returns an independent copy of the set.
func (s AnnotationSet) Clone() AnnotationSet {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

// Find returns the first annotation with the given role.
func (s AnnotationSet) Find(role Role) (Annotation, bool) {
	for _, a := range s {
		if a.Role == role {
			return a, true
		}
	}
	return Annotation{}, false
}

func (s AnnotationSet) String() string {
	parts := make([]string, len(s))
	for i, a := range s {
		parts[i] = a.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
