package resolver

import (
	"debug/dwarf"
	"fmt"
	"strings"
)

const maxTypeDepth = 16

// signature reconstructs a "(const char*, int)" parameter list from a
// function DIE's formal parameters. Compiler-inserted parameters (this,
// vtt) are skipped. Linkage names make this unnecessary; it exists for
// plain C and for debug info without linkage attributes.
func (info *dwarfInfo) signature(fn *die) string {
	var params []string
	for _, c := range fn.children {
		switch c.tag {
		case dwarf.TagFormalParameter:
			if artificial, ok := info.attr(c, dwarf.AttrArtificial).(bool); ok && artificial {
				continue
			}
			params = append(params, info.typeOf(c))
		case dwarf.TagUnspecifiedParameters:
			params = append(params, "...")
		}
	}
	return "(" + strings.Join(params, ", ") + ")"
}

// typeOf renders the type referenced by a DIE's DW_AT_type.
func (info *dwarfInfo) typeOf(d *die) string {
	target, raw := info.resolveRef(d, dwarf.AttrType)
	if raw == nil {
		return "void"
	}
	if target == nil {
		return unresolvedType(raw)
	}
	return info.typeName(target, 0)
}

// typeName renders a DIE of a type tag as C source text, applying
// modifiers right to left the way a declaration reads.
func (info *dwarfInfo) typeName(d *die, depth int) string {
	if depth > maxTypeDepth {
		return "?"
	}
	inner := func() string {
		target, raw := info.resolveRef(d, dwarf.AttrType)
		if raw == nil {
			return "void"
		}
		if target == nil {
			return unresolvedType(raw)
		}
		return info.typeName(target, depth+1)
	}
	switch d.tag {
	case dwarf.TagPointerType:
		return inner() + "*"
	case dwarf.TagReferenceType:
		return inner() + "&"
	case dwarf.TagRvalueReferenceType:
		return inner() + "&&"
	case dwarf.TagConstType:
		t := inner()
		if strings.HasSuffix(t, "*") || strings.HasSuffix(t, "&") {
			return t + " const"
		}
		return "const " + t
	case dwarf.TagVolatileType:
		t := inner()
		if strings.HasSuffix(t, "*") || strings.HasSuffix(t, "&") {
			return t + " volatile"
		}
		return "volatile " + t
	case dwarf.TagRestrictType:
		return inner() + " restrict"
	case dwarf.TagArrayType:
		return inner() + "[]"
	case dwarf.TagTypedef, dwarf.TagBaseType, dwarf.TagEnumerationType,
		dwarf.TagClassType, dwarf.TagStructType, dwarf.TagUnionType,
		dwarf.TagUnspecifiedType:
		if name := info.attrString(d, dwarf.AttrName); name != "" {
			return info.scopePrefix(d) + name
		}
		return fmt.Sprintf("<0x%x>", uint64(d.offset))
	case dwarf.TagSubroutineType:
		return inner() + " (*)(...)"
	default:
		if name := info.attrString(d, dwarf.AttrName); name != "" {
			return name
		}
		return fmt.Sprintf("<0x%x>", uint64(d.offset))
	}
}

// unresolvedType renders a reference that points outside the loaded
// trees, most often a type-unit signature.
func unresolvedType(raw interface{}) string {
	switch v := raw.(type) {
	case dwarf.Offset:
		return fmt.Sprintf("<0x%x>", uint64(v))
	case uint64:
		return fmt.Sprintf("<0x%x>", v)
	default:
		return fmt.Sprintf("<%v>", v)
	}
}
