package resolver

import (
	"debug/dwarf"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/backward-go/backward/demangle"
)

type dieSpec struct {
	tag      dwarf.Tag
	val      map[dwarf.Attr]interface{}
	ranges   [][2]uint64
	children []dieSpec
}

func buildDie(info *dwarfInfo, spec dieSpec, parent *die, next *dwarf.Offset) *die {
	d := &die{
		tag:    spec.tag,
		offset: *next,
		val:    spec.val,
		ranges: spec.ranges,
		parent: parent,
	}
	if d.val == nil {
		d.val = map[dwarf.Attr]interface{}{}
	}
	*next++
	info.byOffset[d.offset] = d
	if parent != nil {
		parent.children = append(parent.children, d)
	}
	for _, c := range spec.children {
		buildDie(info, c, d, next)
	}
	return d
}

func testInfo(spec dieSpec) (*dwarfInfo, *die) {
	info := &dwarfInfo{
		byOffset: map[dwarf.Offset]*die{},
		cus:      map[dwarf.Offset]*cuInfo{},
	}
	var next dwarf.Offset
	root := buildDie(info, spec, nil, &next)
	return info, root
}

// typeRef links a DW_AT_type attribute to a die built earlier; offsets
// are assigned in pre-order, so the test specs count them by hand.
func typeRef(off dwarf.Offset) map[dwarf.Attr]interface{} {
	return map[dwarf.Attr]interface{}{dwarf.AttrType: off}
}

func TestTypeNameModifiers(t *testing.T) {
	// offsets: 0 root, 1 char, 2 const char, 3 const char*, 4 int,
	// 5 int&, 6 unresolved*, 7 typedef
	info, root := testInfo(dieSpec{
		tag: dwarf.TagCompileUnit,
		children: []dieSpec{
			{tag: dwarf.TagBaseType, val: map[dwarf.Attr]interface{}{dwarf.AttrName: "char"}},
			{tag: dwarf.TagConstType, val: typeRef(1)},
			{tag: dwarf.TagPointerType, val: typeRef(2)},
			{tag: dwarf.TagBaseType, val: map[dwarf.Attr]interface{}{dwarf.AttrName: "int"}},
			{tag: dwarf.TagReferenceType, val: typeRef(4)},
			{tag: dwarf.TagPointerType, val: typeRef(0x9999)},
			{tag: dwarf.TagTypedef, val: map[dwarf.Attr]interface{}{dwarf.AttrName: "size_t"}},
		},
	})
	// loadDieAt must not fire for synthetic trees
	info.cuListed = true

	testcases := []struct {
		die      *die
		expected string
	}{
		{root.children[0], "char"},
		{root.children[1], "const char"},
		{root.children[2], "const char*"},
		{root.children[4], "int&"},
		{root.children[5], "<0x9999>*"},
		{root.children[6], "size_t"},
	}
	for _, tc := range testcases {
		require.Equal(t, tc.expected, info.typeName(tc.die, 0))
	}
}

func TestSignatureFromFormalParameters(t *testing.T) {
	// offsets: 0 root, 1 char, 2 const char, 3 const char*, 4 int, 5 fn,
	// 6..8 params
	info, root := testInfo(dieSpec{
		tag: dwarf.TagCompileUnit,
		children: []dieSpec{
			{tag: dwarf.TagBaseType, val: map[dwarf.Attr]interface{}{dwarf.AttrName: "char"}},
			{tag: dwarf.TagConstType, val: typeRef(1)},
			{tag: dwarf.TagPointerType, val: typeRef(2)},
			{tag: dwarf.TagBaseType, val: map[dwarf.Attr]interface{}{dwarf.AttrName: "int"}},
			{
				tag: dwarf.TagSubprogram,
				val: map[dwarf.Attr]interface{}{dwarf.AttrName: "printf"},
				children: []dieSpec{
					{tag: dwarf.TagFormalParameter, val: typeRef(3)},
					{tag: dwarf.TagFormalParameter, val: map[dwarf.Attr]interface{}{
						dwarf.AttrType:       dwarf.Offset(4),
						dwarf.AttrArtificial: true,
					}},
					{tag: dwarf.TagUnspecifiedParameters},
				},
			},
		},
	})
	info.cuListed = true
	fn := root.children[4]
	require.Equal(t, "(const char*, ...)", info.signature(fn))
	require.Equal(t, "printf(const char*, ...)", info.functionName(fn, demangle.New()))
}

func TestScopePrefix(t *testing.T) {
	info, root := testInfo(dieSpec{
		tag: dwarf.TagCompileUnit,
		children: []dieSpec{
			{
				tag: dwarf.TagNamespace,
				val: map[dwarf.Attr]interface{}{dwarf.AttrName: "wikipedia"},
				children: []dieSpec{
					{
						tag: dwarf.TagClassType,
						val: map[dwarf.Attr]interface{}{dwarf.AttrName: "article"},
						children: []dieSpec{
							{tag: dwarf.TagSubprogram, val: map[dwarf.Attr]interface{}{dwarf.AttrName: "format"}},
						},
					},
				},
			},
		},
	})
	info.cuListed = true
	fn := root.children[0].children[0].children[0]
	require.Equal(t, "wikipedia::article::", info.scopePrefix(fn))
	require.Equal(t, "wikipedia::article::format()", info.functionName(fn, demangle.New()))
}

func TestFunctionNamePrefersLinkage(t *testing.T) {
	info, root := testInfo(dieSpec{
		tag: dwarf.TagCompileUnit,
		children: []dieSpec{
			{tag: dwarf.TagSubprogram, val: map[dwarf.Attr]interface{}{
				dwarf.AttrName:        "format",
				dwarf.AttrLinkageName: "_ZN9wikipedia7article6formatEv",
			}},
		},
	})
	info.cuListed = true
	require.Equal(t, "wikipedia::article::format()",
		info.functionName(root.children[0], demangle.New()))
}

func TestAttrFollowsSpecification(t *testing.T) {
	// offsets: 0 root, 1 declaration, 2 definition
	info, root := testInfo(dieSpec{
		tag: dwarf.TagCompileUnit,
		children: []dieSpec{
			{tag: dwarf.TagSubprogram, val: map[dwarf.Attr]interface{}{dwarf.AttrName: "declared"}},
			{tag: dwarf.TagSubprogram, val: map[dwarf.Attr]interface{}{
				dwarf.AttrSpecification: dwarf.Offset(1),
			}},
		},
	})
	info.cuListed = true
	require.Equal(t, "declared", info.attrString(root.children[1], dwarf.AttrName))
}

func TestFunctionChainAndInliners(t *testing.T) {
	// outer() covers [0x1000,0x2000); middle and inner are inline
	// expansions nested inside it.
	info, root := testInfo(dieSpec{
		tag: dwarf.TagCompileUnit,
		children: []dieSpec{
			{
				tag:    dwarf.TagSubprogram,
				val:    map[dwarf.Attr]interface{}{dwarf.AttrName: "outer"},
				ranges: [][2]uint64{{0x1000, 0x2000}},
				children: []dieSpec{
					{
						tag: dwarf.TagInlinedSubroutine,
						val: map[dwarf.Attr]interface{}{
							dwarf.AttrName:       "middle",
							dwarf.AttrCallFile:   int64(1),
							dwarf.AttrCallLine:   int64(10),
							dwarf.AttrCallColumn: int64(3),
						},
						ranges: [][2]uint64{{0x1100, 0x1200}},
						children: []dieSpec{
							{
								tag: dwarf.TagInlinedSubroutine,
								val: map[dwarf.Attr]interface{}{
									dwarf.AttrName:     "inner",
									dwarf.AttrCallFile: int64(1),
									dwarf.AttrCallLine: int64(20),
								},
								ranges: [][2]uint64{{0x1150, 0x1180}},
							},
						},
					},
				},
			},
			{
				tag:    dwarf.TagSubprogram,
				val:    map[dwarf.Attr]interface{}{dwarf.AttrName: "unrelated"},
				ranges: [][2]uint64{{0x3000, 0x4000}},
			},
		},
	})
	info.cuListed = true

	chain := functionChain(root, 0x1160)
	require.Len(t, chain, 3)
	require.Equal(t, "outer", info.attrString(chain[0], dwarf.AttrName))
	require.Equal(t, "inner", info.attrString(chain[2], dwarf.AttrName))

	cu := &cuInfo{linesDone: true, files: []*dwarf.LineFile{nil, {Name: "a.cpp"}}}
	inliners := info.inliners(cu, chain, demangle.New())
	require.Len(t, inliners, 2)
	// innermost call site first
	require.Equal(t, "middle()", inliners[0].Function)
	require.Equal(t, "a.cpp", inliners[0].Filename)
	require.Equal(t, 20, inliners[0].Line)
	require.Equal(t, "outer()", inliners[1].Function)
	require.Equal(t, 10, inliners[1].Line)
	require.Equal(t, 3, inliners[1].Col)

	require.Empty(t, functionChain(root, 0x5000))
	require.Len(t, functionChain(root, 0x3000), 1)
}

func TestFindLine(t *testing.T) {
	info := &dwarfInfo{byOffset: map[dwarf.Offset]*die{}, cus: map[dwarf.Offset]*cuInfo{}}
	cu := &cuInfo{
		linesDone: true,
		lines: []lineRow{
			{addr: 0x1000, file: "a.cpp", line: 5},
			{addr: 0x1010, file: "a.cpp", line: 6},
			{addr: 0x1020, endSeq: true},
			{addr: 0x2000, file: "b.cpp", line: 1},
		},
	}
	testcases := []struct {
		pc       uint64
		ok       bool
		expected lineRow
	}{
		{0x0fff, false, lineRow{}},
		{0x1000, true, lineRow{addr: 0x1000, file: "a.cpp", line: 5}},
		{0x100f, true, lineRow{addr: 0x1000, file: "a.cpp", line: 5}},
		{0x1010, true, lineRow{addr: 0x1010, file: "a.cpp", line: 6}},
		{0x1030, false, lineRow{}}, // past end of sequence
		{0x2000, true, lineRow{addr: 0x2000, file: "b.cpp", line: 1}},
	}
	for _, tc := range testcases {
		row, ok := info.findLine(cu, tc.pc)
		require.Equal(t, tc.ok, ok, "pc %x", tc.pc)
		if ok {
			require.Equal(t, tc.expected, row)
		}
	}
}
