package resolver

import (
	"debug/dwarf"

	"github.com/backward-go/backward/demangle"
	"github.com/backward-go/backward/trace"
)

// functionChain collects the subprogram and every inlined subroutine
// covering pc, outermost first. Entries nest, so a pre-order walk of
// the materialized tree yields them in call order already.
func functionChain(root *die, pc uint64) []*die {
	var chain []*die
	walkDies(root, func(d *die) {
		if d.tag != dwarf.TagSubprogram && d.tag != dwarf.TagInlinedSubroutine {
			return
		}
		if d.hasPC(pc) {
			chain = append(chain, d)
		}
	})
	return chain
}

// scopePrefix builds the "ns::Class::" qualifier from the enclosing
// namespace and type DIEs.
func (info *dwarfInfo) scopePrefix(d *die) string {
	var parts []string
	for p := d.parent; p != nil; p = p.parent {
		switch p.tag {
		case dwarf.TagNamespace, dwarf.TagClassType, dwarf.TagStructType, dwarf.TagUnionType:
			if name := info.attrString(p, dwarf.AttrName); name != "" {
				parts = append(parts, name)
			}
		}
	}
	prefix := ""
	for i := len(parts) - 1; i >= 0; i-- {
		prefix += parts[i] + "::"
	}
	return prefix
}

// functionName renders a display name for a subprogram or inlined
// subroutine. A linkage name demangles into the fully qualified
// signature directly; otherwise the name is qualified with its scope
// and a parameter list reconstructed from the formal parameter DIEs.
func (info *dwarfInfo) functionName(d *die, dem *demangle.Demangler) string {
	if linkage := info.linkageName(d); linkage != "" {
		return dem.Demangle(linkage)
	}
	name := info.attrString(d, dwarf.AttrName)
	if name == "" {
		return ""
	}
	return info.scopePrefix(d) + name + info.signature(d)
}

func (info *dwarfInfo) linkageName(d *die) string {
	if v := info.attrString(d, dwarf.AttrLinkageName); v != "" {
		return v
	}
	// DW_AT_MIPS_linkage_name, used by older GCC
	if v, ok := info.attr(d, dwarf.Attr(0x2007)).(string); ok {
		return v
	}
	return ""
}

// inliners extracts the call sites of every inlined subroutine in the
// chain, innermost first. Each inlined DIE carries the location it was
// called from; the function name is the caller's, one step out in the
// chain.
func (info *dwarfInfo) inliners(cu *cuInfo, chain []*die, dem *demangle.Demangler) []trace.SourceLoc {
	var res []trace.SourceLoc
	for i := len(chain) - 1; i >= 1; i-- {
		d := chain[i]
		if d.tag != dwarf.TagInlinedSubroutine {
			continue
		}
		loc := trace.SourceLoc{Function: info.functionName(chain[i-1], dem)}
		if fileIdx, ok := info.attrInt(d, dwarf.AttrCallFile); ok {
			loc.Filename = info.fileByIndex(cu, fileIdx)
		}
		if line, ok := info.attrInt(d, dwarf.AttrCallLine); ok {
			loc.Line = int(line)
		}
		if col, ok := info.attrInt(d, dwarf.AttrCallColumn); ok {
			loc.Col = int(col)
		}
		res = append(res, loc)
	}
	return res
}

// declLocation falls back to the declaration coordinates of a DIE when
// the line table has no row for the pc.
func (info *dwarfInfo) declLocation(cu *cuInfo, d *die) (string, int) {
	file := ""
	if idx, ok := info.attrInt(d, dwarf.AttrDeclFile); ok {
		file = info.fileByIndex(cu, idx)
	}
	line := 0
	if l, ok := info.attrInt(d, dwarf.AttrDeclLine); ok {
		line = int(l)
	}
	return file, line
}
