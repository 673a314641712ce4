package types

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Compatibility checks
// ---------------------------------------------------------------------------

// IsReference reports whether values of t may be null.
func IsReference(t Type) bool {
	switch t.(type) {
	case *ClassSymbol, *InterfaceSymbol, *ArrayType, *MapType, *FuncSignature:
		return true
	}
	return t == Any || t == String || t == Null
}

// AssignableTo reports whether a value of type src can be stored in a
// location of type dst.
func AssignableTo(src, dst Type) bool {
	if src == nil || dst == nil {
		return false
	}
	if Identical(src, dst) || dst == Any {
		return true
	}
	if src == Null {
		return IsReference(dst)
	}
	if src == Int && dst == Float {
		return true
	}
	switch d := dst.(type) {
	case *ClassSymbol:
		if s, ok := src.(*ClassSymbol); ok {
			return s.IsSubclassOf(d)
		}
	case *InterfaceSymbol:
		switch s := src.(type) {
		case *ClassSymbol:
			return s.Implementing(d)
		case *InterfaceSymbol:
			return s.Extends(d)
		}
	}
	return false
}

// CastableTo reports whether an explicit cast from src to dst is legal.
func CastableTo(src, dst Type) bool {
	if AssignableTo(src, dst) || AssignableTo(dst, src) {
		return true
	}
	if src == Any || dst == Any {
		return true
	}
	_, srcEnum := src.(*EnumSymbol)
	_, dstEnum := dst.(*EnumSymbol)
	switch {
	case IsNumeric(src) && IsNumeric(dst):
		return true
	case srcEnum && IsNumeric(dst), dstEnum && src == Int:
		return true
	case dst == String && (IsNumeric(src) || src == Bool):
		return true
	case dst == Bool && IsNumeric(src), src == Bool && dst == Int:
		return true
	}
	// Down-casts through interfaces are checked at run time.
	if _, ok := src.(*InterfaceSymbol); ok {
		_, isClass := dst.(*ClassSymbol)
		_, isIface := dst.(*InterfaceSymbol)
		return isClass || isIface
	}
	return false
}

// BinaryResult returns the type of `l op r`, or an error when the
// operands don't support op.
func BinaryResult(op string, l, r Type) (Type, error) {
	switch op {
	case "+":
		if l == String && r == String {
			return String, nil
		}
		fallthrough
	case "-", "*", "/":
		if IsNumeric(l) && IsNumeric(r) {
			if l == Float || r == Float {
				return Float, nil
			}
			return Int, nil
		}
	case "%":
		if l == Int && r == Int {
			return Int, nil
		}
	case "<", "<=", ">", ">=":
		if IsNumeric(l) && IsNumeric(r) {
			return Bool, nil
		}
	case "==", "!=":
		if AssignableTo(l, r) || AssignableTo(r, l) {
			return Bool, nil
		}
		_, le := l.(*EnumSymbol)
		_, re := r.(*EnumSymbol)
		if (le && r == Int) || (re && l == Int) {
			return Bool, nil
		}
	case "&&", "||":
		if l == Bool && r == Bool {
			return Bool, nil
		}
	default:
		return nil, fmt.Errorf("unknown operator '%s'", op)
	}
	return nil, fmt.Errorf("operator '%s' is not applicable to %s and %s", op, name(l), name(r))
}

// UnaryResult returns the type of `op x`.
func UnaryResult(op string, x Type) (Type, error) {
	switch op {
	case "-":
		if IsNumeric(x) {
			return x, nil
		}
	case "!":
		if x == Bool {
			return Bool, nil
		}
	default:
		return nil, fmt.Errorf("unknown operator '%s'", op)
	}
	return nil, fmt.Errorf("operator '%s' is not applicable to %s", op, name(x))
}

func name(t Type) string {
	if t == nil {
		return "void"
	}
	return t.TypeName()
}
