package resolver

import (
	"debug/dwarf"
	"fmt"
	"sort"
)

// die is one debug info entry, materialized with its attribute values,
// resolved pc ranges and tree links. Materializing lets the resolver
// revisit entries (scope walks, type chains, specification merges)
// without re-decoding the section.
type die struct {
	tag      dwarf.Tag
	offset   dwarf.Offset
	val      map[dwarf.Attr]interface{}
	ranges   [][2]uint64
	parent   *die
	children []*die
}

func (d *die) hasPC(pc uint64) bool {
	for _, r := range d.ranges {
		if pc >= r[0] && pc < r[1] {
			return true
		}
	}
	return false
}

// lineRow is one row of a CU's line number program, the subset the
// resolver needs.
type lineRow struct {
	addr   uint64
	file   string
	line   int
	endSeq bool
}

// cuInfo caches everything derived from one compile unit: the DIE tree
// and the decoded line table. Both are built on first use and kept for
// the resolver's lifetime.
type cuInfo struct {
	entry *dwarf.Entry

	root    *die
	treeErr error

	lines     []lineRow
	files     []*dwarf.LineFile
	linesDone bool
}

// dwarfInfo is the per-object DWARF state: parsed debug data, lazily
// built per-CU caches and a global offset index used to chase DIE
// references (DW_AT_type, DW_AT_specification, DW_AT_abstract_origin).
type dwarfInfo struct {
	data     *dwarf.Data
	byOffset map[dwarf.Offset]*die

	cus      map[dwarf.Offset]*cuInfo
	cuList   []*cuInfo
	cuListed bool
}

func newDwarfInfo(data *dwarf.Data) *dwarfInfo {
	return &dwarfInfo{
		data:     data,
		byOffset: make(map[dwarf.Offset]*die),
		cus:      make(map[dwarf.Offset]*cuInfo),
	}
}

// findCU locates the compile unit covering pc. Three rungs, each tried
// only when the previous one missed:
//  1. the address range index (SeekPC),
//  2. a linear scan of CU entries testing their own pc ranges (clang
//     is known to omit the index),
//  3. a scan of every CU's subprograms, for CUs that carry no ranges
//     themselves.
func (info *dwarfInfo) findCU(pc uint64) *cuInfo {
	r := info.data.Reader()
	if entry, err := r.SeekPC(pc); err == nil && entry != nil {
		return info.cu(entry)
	}

	for _, cu := range info.allCUs() {
		ranges, err := info.data.Ranges(cu.entry)
		if err != nil {
			continue
		}
		for _, rng := range ranges {
			if pc >= rng[0] && pc < rng[1] {
				return cu
			}
		}
	}

	for _, cu := range info.allCUs() {
		root, err := info.tree(cu)
		if err != nil {
			continue
		}
		found := false
		walkDies(root, func(d *die) {
			if !found && d.tag == dwarf.TagSubprogram && d.hasPC(pc) {
				found = true
			}
		})
		if found {
			return cu
		}
	}
	return nil
}

func (info *dwarfInfo) cu(entry *dwarf.Entry) *cuInfo {
	if cu, ok := info.cus[entry.Offset]; ok {
		return cu
	}
	cu := &cuInfo{entry: entry}
	info.cus[entry.Offset] = cu
	return cu
}

func (info *dwarfInfo) allCUs() []*cuInfo {
	if info.cuListed {
		return info.cuList
	}
	info.cuListed = true
	r := info.data.Reader()
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		if entry.Tag == dwarf.TagCompileUnit {
			info.cuList = append(info.cuList, info.cu(entry))
		}
		r.SkipChildren()
	}
	return info.cuList
}

// tree returns the CU's materialized DIE tree, building it on first
// use. Build failures are remembered.
func (info *dwarfInfo) tree(cu *cuInfo) (_ *die, err error) {
	if cu.root != nil || cu.treeErr != nil {
		return cu.root, cu.treeErr
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading DIE tree: %v", r)
			cu.root, cu.treeErr = nil, err
		}
	}()

	r := info.data.Reader()
	r.Seek(cu.entry.Offset)
	entry, err := r.Next()
	if err != nil || entry == nil {
		cu.treeErr = fmt.Errorf("seek compile unit: %w", err)
		return nil, cu.treeErr
	}
	root := info.newDie(entry, nil)
	if entry.Children {
		stack := []*die{root}
		for len(stack) > 0 {
			e, err := r.Next()
			if err != nil {
				cu.treeErr = err
				return nil, err
			}
			if e == nil {
				break
			}
			if e.Tag == 0 {
				stack = stack[:len(stack)-1]
				continue
			}
			n := info.newDie(e, stack[len(stack)-1])
			if e.Children {
				stack = append(stack, n)
			}
		}
	}
	cu.root = root
	return root, nil
}

func (info *dwarfInfo) newDie(entry *dwarf.Entry, parent *die) *die {
	d := &die{
		tag:    entry.Tag,
		offset: entry.Offset,
		val:    make(map[dwarf.Attr]interface{}, len(entry.Field)),
		parent: parent,
	}
	for _, f := range entry.Field {
		d.val[f.Attr] = f.Val
	}
	if ranges, err := info.data.Ranges(entry); err == nil {
		d.ranges = ranges
	}
	info.byOffset[entry.Offset] = d
	if parent != nil {
		parent.children = append(parent.children, d)
	}
	return d
}

func walkDies(d *die, fn func(*die)) {
	fn(d)
	for _, c := range d.children {
		walkDies(c, fn)
	}
}

// attr looks up an attribute, following DW_AT_specification and
// DW_AT_abstract_origin when the entry itself lacks it. Out-of-line
// definitions and inlined instances keep their name, type and
// parameters on the referenced DIE.
func (info *dwarfInfo) attr(d *die, a dwarf.Attr) interface{} {
	for depth := 0; d != nil && depth < 5; depth++ {
		if v, ok := d.val[a]; ok {
			return v
		}
		next, ok := d.val[dwarf.AttrSpecification]
		if !ok {
			next, ok = d.val[dwarf.AttrAbstractOrigin]
		}
		if !ok {
			return nil
		}
		off, ok := next.(dwarf.Offset)
		if !ok {
			return nil
		}
		d = info.byOffset[off]
	}
	return nil
}

func (info *dwarfInfo) attrString(d *die, a dwarf.Attr) string {
	if v, ok := info.attr(d, a).(string); ok {
		return v
	}
	return ""
}

func (info *dwarfInfo) attrInt(d *die, a dwarf.Attr) (int64, bool) {
	v, ok := info.attr(d, a).(int64)
	return v, ok
}

// resolveRef follows a reference-class attribute to its target DIE. The
// second return distinguishes "no such attribute" from "reference
// points outside the loaded tree".
func (info *dwarfInfo) resolveRef(d *die, a dwarf.Attr) (*die, interface{}) {
	v := info.attr(d, a)
	if v == nil {
		return nil, nil
	}
	off, ok := v.(dwarf.Offset)
	if !ok {
		// type-unit signatures and other non-offset references
		return nil, v
	}
	if target, ok := info.byOffset[off]; ok {
		return target, v
	}
	if target := info.loadDieAt(off); target != nil {
		return target, v
	}
	return nil, v
}

// loadDieAt materializes the CU containing the given offset, for
// cross-CU references (DW_FORM_ref_addr) into units not yet built.
func (info *dwarfInfo) loadDieAt(off dwarf.Offset) *die {
	for _, cu := range info.allCUs() {
		if cu.entry.Offset > off {
			continue
		}
		if _, err := info.tree(cu); err != nil {
			continue
		}
		if d, ok := info.byOffset[off]; ok {
			return d
		}
	}
	return nil
}

// lineTable decodes the CU's line number program once.
func (info *dwarfInfo) lineTable(cu *cuInfo) ([]lineRow, []*dwarf.LineFile) {
	if cu.linesDone {
		return cu.lines, cu.files
	}
	cu.linesDone = true

	defer func() {
		if r := recover(); r != nil {
			cu.lines, cu.files = nil, nil
		}
	}()

	lr, err := info.data.LineReader(cu.entry)
	if err != nil || lr == nil {
		return nil, nil
	}
	cu.files = lr.Files()
	var entry dwarf.LineEntry
	for {
		if err := lr.Next(&entry); err != nil {
			break
		}
		row := lineRow{addr: entry.Address, line: entry.Line, endSeq: entry.EndSequence}
		if entry.File != nil {
			row.file = entry.File.Name
		}
		cu.lines = append(cu.lines, row)
	}
	sort.SliceStable(cu.lines, func(i, j int) bool {
		return cu.lines[i].addr < cu.lines[j].addr
	})
	return cu.lines, cu.files
}

// findLine returns the line table row covering pc. A row only covers up
// to the next row, and an end-of-sequence row covers nothing.
func (info *dwarfInfo) findLine(cu *cuInfo, pc uint64) (lineRow, bool) {
	lines, _ := info.lineTable(cu)
	if len(lines) == 0 {
		return lineRow{}, false
	}
	i := sort.Search(len(lines), func(i int) bool {
		return pc < lines[i].addr
	})
	i--
	if i < 0 || lines[i].endSeq {
		return lineRow{}, false
	}
	return lines[i], true
}

// fileByIndex resolves a DW_AT_call_file / DW_AT_decl_file index
// against the CU's file table.
func (info *dwarfInfo) fileByIndex(cu *cuInfo, idx int64) string {
	_, files := info.lineTable(cu)
	if idx < 0 || idx >= int64(len(files)) || files[idx] == nil {
		return ""
	}
	return files[idx].Name
}
