package syntax

import "strings"

// Op is the operation tag of an expression node.
type Op int

const (
	OpUnknown Op = iota

	// Values and locals
	OpLdc   // constant
	OpLoad  // local variable read
	OpStore // local variable write; Args[0] is the value

	// Fields
	OpGetField  // Args[0] is the receiver
	OpPutField  // Args[0] is the receiver, Args[1] the value
	OpGetStatic // no args
	OpPutStatic // Args[0] is the value

	// Invocations
	OpInvokeVirtual
	OpInvokeSpecial
	OpInvokeStatic
	OpInvokeInterface

	// Comparisons
	OpCmpEq
	OpCmpNe
	OpCmpLt
	OpCmpLe
	OpCmpGt
	OpCmpGe

	// Binary math
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpUShr

	// Unary
	OpNeg
	OpPreIncrement
	OpPostIncrement

	// Objects and arrays
	OpNew
	OpNewArray
	OpLoadElement
	OpStoreElement
	OpArrayLength
	OpCheckCast
	OpInstanceOf

	// Control
	OpReturn
	OpThrow
)

var opNames = map[Op]string{
	OpUnknown:         "Unknown",
	OpLdc:             "Ldc",
	OpLoad:            "Load",
	OpStore:           "Store",
	OpGetField:        "GetField",
	OpPutField:        "PutField",
	OpGetStatic:       "GetStatic",
	OpPutStatic:       "PutStatic",
	OpInvokeVirtual:   "InvokeVirtual",
	OpInvokeSpecial:   "InvokeSpecial",
	OpInvokeStatic:    "InvokeStatic",
	OpInvokeInterface: "InvokeInterface",
	OpCmpEq:           "CmpEq",
	OpCmpNe:           "CmpNe",
	OpCmpLt:           "CmpLt",
	OpCmpLe:           "CmpLe",
	OpCmpGt:           "CmpGt",
	OpCmpGe:           "CmpGe",
	OpAdd:             "Add",
	OpSub:             "Sub",
	OpMul:             "Mul",
	OpDiv:             "Div",
	OpRem:             "Rem",
	OpAnd:             "And",
	OpOr:              "Or",
	OpXor:             "Xor",
	OpShl:             "Shl",
	OpShr:             "Shr",
	OpUShr:            "UShr",
	OpNeg:             "Neg",
	OpPreIncrement:    "PreIncrement",
	OpPostIncrement:   "PostIncrement",
	OpNew:             "New",
	OpNewArray:        "NewArray",
	OpLoadElement:     "LoadElement",
	OpStoreElement:    "StoreElement",
	OpArrayLength:     "ArrayLength",
	OpCheckCast:       "CheckCast",
	OpInstanceOf:      "InstanceOf",
	OpReturn:          "Return",
	OpThrow:           "Throw",
}

var opsByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[strings.ToLower(name)] = op
	}
	return m
}()

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "Unknown"
}

// ParseOp looks an operation up by name, case-insensitively.
func ParseOp(name string) (Op, bool) {
	op, ok := opsByName[strings.ToLower(name)]
	return op, ok
}

// IsBinaryMath reports whether the op is a two-operand arithmetic or bitwise operation.
func (o Op) IsBinaryMath() bool {
	return o >= OpAdd && o <= OpUShr
}

// IsComparison reports whether the op compares its two operands.
func (o Op) IsComparison() bool {
	return o >= OpCmpEq && o <= OpCmpGe
}

// IsInvoke reports whether the op is a method invocation.
func (o Op) IsInvoke() bool {
	return o >= OpInvokeVirtual && o <= OpInvokeInterface
}

// JvmType is the simple inferred type of a value.
type JvmType int

const (
	TypeNone JvmType = iota
	TypeVoid
	TypeBoolean
	TypeByte
	TypeChar
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeObject
	TypeArray
)

var typeNames = [...]string{
	TypeNone:    "",
	TypeVoid:    "void",
	TypeBoolean: "boolean",
	TypeByte:    "byte",
	TypeChar:    "char",
	TypeShort:   "short",
	TypeInt:     "int",
	TypeLong:    "long",
	TypeFloat:   "float",
	TypeDouble:  "double",
	TypeObject:  "object",
	TypeArray:   "array",
}

func (t JvmType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return ""
	}
	return typeNames[t]
}

// ParseType maps a type name such as "double" to its JvmType.
func ParseType(name string) (JvmType, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == name {
			return JvmType(t), true
		}
	}
	return TypeNone, false
}

// IsFloating reports whether values of the type are float or double.
func (t JvmType) IsFloating() bool {
	return t == TypeFloat || t == TypeDouble
}

// IsWide reports whether the type occupies two slots (long and double).
func (t JvmType) IsWide() bool {
	return t == TypeLong || t == TypeDouble
}
