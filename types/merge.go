package types

// Collision is one clash between two exported declarations of the same
// qualified name in different modules.
type Collision struct {
	Name   string // qualified name
	First  Symbol
	Second Symbol
}

// MergeNamespaces merges src's exported declarations into dst, descending
// into nested namespaces. dst must be a project namespace built only by
// this function; src is never modified. File-local symbols never collide
// and are not merged. Each clash is reported exactly once.
func MergeNamespaces(dst, src *Namespace) []Collision {
	var out []Collision
	for _, sym := range src.Members.All() {
		if IsLocal(sym) {
			continue
		}
		existing := dst.Members.Get(sym.Name())
		srcNS, srcIsNS := sym.(*Namespace)
		switch {
		case existing == nil && srcIsNS:
			child, _ := dst.Child(sym.Name())
			out = append(out, MergeNamespaces(child, srcNS)...)
		case existing == nil:
			dst.Members.Define(sym)
		default:
			dstNS, dstIsNS := existing.(*Namespace)
			if srcIsNS && dstIsNS {
				out = append(out, MergeNamespaces(dstNS, srcNS)...)
				continue
			}
			out = append(out, Collision{
				Name:   QualifiedName(dst.Path, sym.Name()),
				First:  existing,
				Second: sym,
			})
		}
	}
	return out
}

// OwnerModule returns the module that declared sym, or "".
func OwnerModule(sym Symbol) string {
	if d, ok := sym.(Decl); ok {
		return d.ModuleName()
	}
	return ""
}
