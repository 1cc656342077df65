// Package debuginfo answers the debugger's source-level queries by
// composing the ELF section locator with the DWARF readers: program
// counters to source locations and back, function names to entry points,
// and variable names to frame storage.
package debuginfo

import (
	"debug/dwarf"
	"errors"
	"fmt"

	"github.com/derekparker/trie"
	lru "github.com/hashicorp/golang-lru"

	"github.com/slatedbg/slate/pkg/dwarf/info"
	"github.com/slatedbg/slate/pkg/dwarf/line"
	"github.com/slatedbg/slate/pkg/dwarf/op"
	"github.com/slatedbg/slate/pkg/dwarf/regnum"
	"github.com/slatedbg/slate/pkg/elffile"
	"github.com/slatedbg/slate/pkg/logflags"
)

// ErrNotFound is the query-miss sentinel: the debug information is well
// formed but does not contain what was asked for. Command handlers match
// it with errors.Is and report "not found" instead of failing hard.
var ErrNotFound = errors.New("not found")

// lineTableCacheSize bounds the number of materialized line tables kept
// alive; one table per compile unit is the common case.
const lineTableCacheSize = 16

// SourceLocation is a row of the line matrix projected for callers.
type SourceLocation struct {
	Address     uint64
	File        string
	Line        int
	IsStmt      bool
	PrologueEnd bool
}

// funcEntry is the trie payload for one subprogram.
type funcEntry struct {
	name    string
	entryPC uint64
}

// DebugInfo owns the parsed compile units of a target binary and borrows
// its debug sections from the ELF reader, which must outlive it.
type DebugInfo struct {
	elf *elffile.File
	cus []*info.CompileUnit

	debugStr    []byte
	debugLine   []byte
	debugRanges []byte

	lineTables *lru.Cache
	functions  *trie.Trie

	log logflags.Logger
}

// New parses the debug information of the target open in f.
func New(f *elffile.File) (*DebugInfo, error) {
	debugInfo, err := f.Section(".debug_info")
	if err != nil {
		return nil, err
	}
	debugAbbrev, err := f.Section(".debug_abbrev")
	if err != nil {
		return nil, err
	}
	debugStr, err := f.Section(".debug_str")
	if err != nil {
		return nil, err
	}
	debugLine, err := f.Section(".debug_line")
	if err != nil {
		return nil, err
	}
	// Not every producer emits .debug_ranges; treated as empty when absent.
	var debugRanges []byte
	if f.HasSection(".debug_ranges") {
		debugRanges, err = f.Section(".debug_ranges")
		if err != nil {
			return nil, err
		}
	}

	cus, err := info.Parse(debugInfo, debugAbbrev)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New(lineTableCacheSize)
	if err != nil {
		return nil, err
	}

	d := &DebugInfo{
		elf:         f,
		cus:         cus,
		debugStr:    debugStr,
		debugLine:   debugLine,
		debugRanges: debugRanges,
		lineTables:  cache,
		functions:   trie.New(),
		log:         logflags.DebuggerLogger(),
	}
	if err := d.indexFunctions(); err != nil {
		return nil, err
	}
	return d, nil
}

// indexFunctions builds the subprogram-name index. The first subprogram
// with a given name and an entry point wins, matching lookup order on the
// raw entries.
func (d *DebugInfo) indexFunctions() error {
	for _, cu := range d.cus {
		root, err := cu.Root()
		if err != nil {
			return err
		}
		for cur := root; !cur.AtEnd(); {
			if cur.Tag() == dwarf.TagSubprogram {
				if err := d.indexSubprogram(&cur); err != nil {
					return err
				}
			}
			if err := cur.Next(); err != nil {
				return err
			}
		}
	}
	d.log.Debugf("indexed %d functions", len(d.functions.Keys()))
	return nil
}

func (d *DebugInfo) indexSubprogram(cur *info.Cursor) error {
	nameAttr, ok, err := cur.Attr(dwarf.AttrName)
	if err != nil || !ok {
		return err
	}
	name, err := nameAttr.Str(d.debugStr)
	if err != nil {
		return err
	}
	lowAttr, ok, err := cur.Attr(dwarf.AttrLowpc)
	if err != nil || !ok {
		return err
	}
	entryPC, err := lowAttr.Uint64()
	if err != nil {
		return err
	}
	if _, exists := d.functions.Find(name); !exists {
		d.functions.Add(name, funcEntry{name: name, entryPC: entryPC})
	}
	return nil
}

// Functions returns the names of all indexed functions with the given
// prefix, feeding the terminal's completion. An empty prefix returns
// every name.
func (d *DebugInfo) Functions(prefix string) []string {
	if prefix == "" {
		return d.functions.Keys()
	}
	return d.functions.PrefixSearch(prefix)
}

// SourceLocationForFunction returns the source location of the named
// function's entry point, past its prologue.
func (d *DebugInfo) SourceLocationForFunction(name string) (SourceLocation, error) {
	node, ok := d.functions.Find(name)
	if !ok {
		return SourceLocation{}, fmt.Errorf("function %s: %w", name, ErrNotFound)
	}
	entry := node.Meta().(funcEntry)
	return d.SourceLocationForPC(entry.entryPC, true)
}

// lineTable materializes (or fetches from cache) the line matrix of the
// compile unit.
func (d *DebugInfo) lineTable(cu *info.CompileUnit) ([]line.Entry, error) {
	root, err := cu.Root()
	if err != nil {
		return nil, err
	}
	stmtList, ok, err := root.Attr(dwarf.AttrStmtList)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("compile unit at %#x has no line number program: %w", cu.Offset, ErrNotFound)
	}
	offset, err := stmtList.Uint64()
	if err != nil {
		return nil, err
	}
	if cached, ok := d.lineTables.Get(offset); ok {
		return cached.([]line.Entry), nil
	}

	if offset > uint64(len(d.debugLine)) {
		return nil, fmt.Errorf("DW_AT_stmt_list offset %#x past the end of .debug_line", offset)
	}
	var logf func(string, ...interface{})
	if logflags.DwarfLine() {
		logf = logflags.DwarfLineLogger().Debugf
	}
	li, err := line.Parse(d.debugLine[offset:], logf)
	if err != nil {
		return nil, err
	}
	rows, err := li.Table()
	if err != nil {
		return nil, err
	}
	d.lineTables.Add(offset, rows)
	return rows, nil
}

// PCForFileLine returns the address of the statement row closest to
// file:lineno. When the following row ends the function prologue the
// address past the prologue is preferred, so breakpoints land on useful
// instructions.
func (d *DebugInfo) PCForFileLine(lineno int, file string) (uint64, error) {
	cu, err := d.compileUnitForFile(file)
	if err != nil {
		return 0, err
	}
	rows, err := d.lineTable(cu)
	if err != nil {
		return 0, err
	}

	best := -1
	minDistance := 0
	for i := range rows {
		if rows[i].File != file || !rows[i].IsStmt {
			continue
		}
		distance := rows[i].Line - lineno
		if distance < 0 {
			distance = -distance
		}
		if best == -1 || distance < minDistance {
			best = i
			minDistance = distance
		}
	}
	if best == -1 {
		return 0, fmt.Errorf("no line table row for %s:%d: %w", file, lineno, ErrNotFound)
	}

	if best < len(rows)-1 && rows[best+1].PrologueEnd {
		best++
	}
	return rows[best].Address, nil
}

// compileUnitForFile finds the compile unit whose root entry is named
// file.
func (d *DebugInfo) compileUnitForFile(file string) (*info.CompileUnit, error) {
	for _, cu := range d.cus {
		root, err := cu.Root()
		if err != nil {
			return nil, err
		}
		nameAttr, ok, err := root.Attr(dwarf.AttrName)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		name, err := nameAttr.Str(d.debugStr)
		if err != nil {
			return nil, err
		}
		if name == file {
			return cu, nil
		}
	}
	return nil, fmt.Errorf("no compile unit for %s: %w", file, ErrNotFound)
}

// SourceLocationForPC returns the line matrix row covering pc. With
// skipPrologue set the row after the prologue of the containing function
// is returned instead, when the table marks one.
func (d *DebugInfo) SourceLocationForPC(pc uint64, skipPrologue bool) (SourceLocation, error) {
	cu, err := d.compileUnitForPC(pc)
	if err != nil {
		return SourceLocation{}, err
	}
	rows, err := d.lineTable(cu)
	if err != nil {
		return SourceLocation{}, err
	}

	best := -1
	for i := 1; i < len(rows); i++ {
		if rows[i-1].Address <= pc && pc < rows[i].Address && !rows[i-1].EndSequence {
			best = i - 1
		}
	}
	if best == -1 {
		return SourceLocation{}, fmt.Errorf("no line table row for pc %#x: %w", pc, ErrNotFound)
	}

	if skipPrologue && best < len(rows)-1 && rows[best+1].PrologueEnd {
		best++
	}

	return SourceLocation{
		Address:     rows[best].Address,
		File:        rows[best].File,
		Line:        rows[best].Line,
		IsStmt:      rows[best].IsStmt,
		PrologueEnd: rows[best].PrologueEnd,
	}, nil
}

func (d *DebugInfo) compileUnitForPC(pc uint64) (*info.CompileUnit, error) {
	for _, cu := range d.cus {
		ok, err := cu.ContainsPC(pc, d.debugRanges)
		if err != nil {
			return nil, err
		}
		if ok {
			return cu, nil
		}
	}
	return nil, fmt.Errorf("no compile unit covers pc %#x: %w", pc, ErrNotFound)
}

// FunctionForPC returns the name of the function containing pc, from its
// DW_AT_name or, failing that, its DW_AT_linkage_name.
func (d *DebugInfo) FunctionForPC(pc uint64) (string, error) {
	cur, err := d.subprogramForPC(pc)
	if err != nil {
		return "", err
	}

	nameAttr, ok, err := cur.Attr(dwarf.AttrName)
	if err != nil {
		return "", err
	}
	if !ok {
		nameAttr, ok, err = cur.Attr(dwarf.AttrLinkageName)
		if err != nil {
			return "", err
		}
	}
	if !ok {
		return "", fmt.Errorf("function at pc %#x has no name: %w", pc, ErrNotFound)
	}
	return nameAttr.Str(d.debugStr)
}

// subprogramForPC finds the subprogram entry whose code range contains
// pc.
func (d *DebugInfo) subprogramForPC(pc uint64) (*info.Cursor, error) {
	for _, cu := range d.cus {
		root, err := cu.Root()
		if err != nil {
			return nil, err
		}
		for cur := root; !cur.AtEnd(); {
			if cur.Tag() == dwarf.TagSubprogram {
				low, high, ok, err := info.PCRange(&cur)
				if err != nil {
					return nil, err
				}
				if ok && low <= pc && pc <= high {
					found := cur
					return &found, nil
				}
			}
			if err := cur.Next(); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("no function covers pc %#x: %w", pc, ErrNotFound)
}

// VariableFrameOffset resolves the named variable in the function
// containing pc to its frame-relative offset. Only frame-base and
// rbp-relative storage is supported; anything else is a failure the
// caller reports.
func (d *DebugInfo) VariableFrameOffset(pc uint64, name string) (int64, error) {
	sub, err := d.subprogramForPC(pc)
	if err != nil {
		return 0, err
	}

	nested, err := sub.Children()
	if err != nil {
		return 0, err
	}
	for i := range nested {
		nameAttr, ok, err := nested[i].Attr(dwarf.AttrName)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		n, err := nameAttr.Str(d.debugStr)
		if err != nil {
			return 0, err
		}
		if n != name {
			continue
		}

		locAttr, ok, err := nested[i].Attr(dwarf.AttrLocation)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("variable %s has no location: %w", name, ErrNotFound)
		}
		expr, err := locAttr.Expr()
		if err != nil {
			return 0, err
		}
		loc, err := op.Decode(expr)
		if err != nil {
			return 0, err
		}
		switch {
		case loc.Kind == op.FrameBase:
			base, err := d.frameBaseOffset(sub)
			if err != nil {
				return 0, err
			}
			return loc.Offset + base, nil
		case loc.Kind == op.Relative && loc.Reg == regnum.AMD64_Rbp:
			return loc.Offset, nil
		}
		return 0, fmt.Errorf("variable %s is stored in a %s location, only frame-relative storage is supported", name, loc.Kind)
	}
	return 0, fmt.Errorf("no variable %s in the current function: %w", name, ErrNotFound)
}

// cfaFrameOffset is the displacement of the canonical frame address from
// the saved frame pointer on x86-64: the CFA sits above the saved rbp and
// the return address.
const cfaFrameOffset = 16

// frameBaseOffset turns a subprogram's DW_AT_frame_base into a
// displacement from the frame pointer, so DW_OP_fbreg offsets can be
// applied to rbp directly.
func (d *DebugInfo) frameBaseOffset(sub *info.Cursor) (int64, error) {
	fbAttr, ok, err := sub.Attr(dwarf.AttrFrameBase)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	expr, err := fbAttr.Expr()
	if err != nil {
		return 0, err
	}
	fb, err := op.Decode(expr)
	if err != nil {
		return 0, err
	}
	switch {
	case fb.Kind == op.Register && fb.Reg == regnum.AMD64_Rbp:
		return 0, nil
	case fb.Kind == op.Relative && fb.Reg == regnum.AMD64_Rbp:
		return fb.Offset, nil
	case fb.Kind == op.FrameBase:
		// DW_OP_call_frame_cfa with a frame-pointer-preserving target.
		return cfaFrameOffset, nil
	}
	return 0, fmt.Errorf("unsupported frame base %s", fb.Kind)
}
