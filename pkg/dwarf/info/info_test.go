package info

import (
	"bytes"
	"debug/dwarf"
	"encoding/binary"
	"testing"

	"github.com/slatedbg/slate/pkg/dwarf/form"
	"github.com/slatedbg/slate/pkg/dwarf/leb128"
)

// The builders below assemble a synthetic two-unit .debug_info section the
// shape clang emits for the fixture programs: unit one covers two
// functions with a local variable each plus a base type, unit two
// advertises its code through .debug_ranges.

const (
	abbrevCompileUnit = 1
	abbrevSubprogram  = 2
	abbrevVariable    = 3
	abbrevBaseType    = 4
	abbrevRangesUnit  = 5
)

func buildAbbrev() []byte {
	var buf bytes.Buffer

	decl := func(code, tag uint64, children byte, pairs ...uint64) {
		leb128.EncodeUnsigned(&buf, code)
		leb128.EncodeUnsigned(&buf, tag)
		buf.WriteByte(children)
		for i := 0; i < len(pairs); i += 2 {
			leb128.EncodeUnsigned(&buf, pairs[i])
			leb128.EncodeUnsigned(&buf, pairs[i+1])
		}
		buf.WriteByte(0)
		buf.WriteByte(0)
	}

	decl(abbrevCompileUnit, uint64(dwarf.TagCompileUnit), 1,
		uint64(dwarf.AttrName), uint64(form.Strp),
		uint64(dwarf.AttrStmtList), uint64(form.SecOffset),
		uint64(dwarf.AttrLowpc), uint64(form.Addr),
		uint64(dwarf.AttrHighpc), uint64(form.Addr))
	decl(abbrevSubprogram, uint64(dwarf.TagSubprogram), 1,
		uint64(dwarf.AttrName), uint64(form.Strp),
		uint64(dwarf.AttrLowpc), uint64(form.Addr),
		uint64(dwarf.AttrHighpc), uint64(form.Data4),
		uint64(dwarf.AttrFrameBase), uint64(form.Exprloc))
	decl(abbrevVariable, uint64(dwarf.TagVariable), 0,
		uint64(dwarf.AttrName), uint64(form.Strp),
		uint64(dwarf.AttrLocation), uint64(form.Exprloc))
	decl(abbrevBaseType, uint64(dwarf.TagBaseType), 0,
		uint64(dwarf.AttrName), uint64(form.Strp))
	decl(abbrevRangesUnit, uint64(dwarf.TagCompileUnit), 0,
		uint64(dwarf.AttrName), uint64(form.Strp),
		uint64(dwarf.AttrRanges), uint64(form.SecOffset))
	buf.WriteByte(0)

	return buf.Bytes()
}

// Offsets into the synthetic .debug_str section.
const (
	strMain     = 0
	strAnswer   = 5
	strKnapsack = 12
	strWeight   = 21
	strInt      = 28
	strMainCpp  = 32
	strSolver   = 41
)

func buildDebugStr() []byte {
	return []byte("main\x00answer\x00knapsack\x00weight\x00int\x00main.cpp\x00solver.cpp\x00")
}

func u32(buf *bytes.Buffer, v uint32) { binary.Write(buf, binary.LittleEndian, v) }
func u64(buf *bytes.Buffer, v uint64) { binary.Write(buf, binary.LittleEndian, v) }

func buildUnitOne() []byte {
	var body bytes.Buffer

	// DW_TAG_compile_unit "main.cpp" [0x400ad9, 0x401000)
	leb128.EncodeUnsigned(&body, abbrevCompileUnit)
	u32(&body, strMainCpp)
	u32(&body, 0) // stmt_list
	u64(&body, 0x400ad9)
	u64(&body, 0x401000)

	// DW_TAG_subprogram "main" [0x400ad9, +0x28d)
	leb128.EncodeUnsigned(&body, abbrevSubprogram)
	u32(&body, strMain)
	u64(&body, 0x400ad9)
	u32(&body, 0x28d)
	body.Write([]byte{0x01, 0x9c}) // DW_OP_call_frame_cfa

	// DW_TAG_variable "answer" fbreg -20
	leb128.EncodeUnsigned(&body, abbrevVariable)
	u32(&body, strAnswer)
	body.Write([]byte{0x02, 0x91, 0x6c}) // DW_OP_fbreg -20

	body.WriteByte(0) // end of main's children

	// DW_TAG_subprogram "knapsack" [0x401756, +0x16c)
	leb128.EncodeUnsigned(&body, abbrevSubprogram)
	u32(&body, strKnapsack)
	u64(&body, 0x401756)
	u32(&body, 0x16c)
	body.Write([]byte{0x01, 0x9c})

	// DW_TAG_variable "weight" fbreg -32
	leb128.EncodeUnsigned(&body, abbrevVariable)
	u32(&body, strWeight)
	body.Write([]byte{0x02, 0x91, 0x60})

	body.WriteByte(0) // end of knapsack's children

	// DW_TAG_base_type "int"
	leb128.EncodeUnsigned(&body, abbrevBaseType)
	u32(&body, strInt)

	body.WriteByte(0) // end of the root's children

	return wrapUnit(body.Bytes(), 0)
}

func buildUnitTwo() []byte {
	var body bytes.Buffer

	// DW_TAG_compile_unit "solver.cpp", code described by .debug_ranges.
	leb128.EncodeUnsigned(&body, abbrevRangesUnit)
	u32(&body, strSolver)
	u32(&body, 0) // offset into .debug_ranges

	return wrapUnit(body.Bytes(), 0)
}

// wrapUnit prefixes body with a 32-bit DWARF v4 unit header.
func wrapUnit(body []byte, abbrevOffset uint32) []byte {
	var unit bytes.Buffer
	u32(&unit, uint32(7+len(body))) // version + abbrev offset + address size + body
	binary.Write(&unit, binary.LittleEndian, uint16(4))
	u32(&unit, abbrevOffset)
	unit.WriteByte(8)
	unit.Write(body)
	return unit.Bytes()
}

func buildDebugInfo() []byte {
	return append(buildUnitOne(), buildUnitTwo()...)
}

func buildDebugRanges() []byte {
	var buf bytes.Buffer
	u64(&buf, 0x401756)
	u64(&buf, 0x4018c1)
	u64(&buf, 0x4018c2)
	u64(&buf, 0x401a2e)
	u64(&buf, 0)
	u64(&buf, 0)
	return buf.Bytes()
}

func parseUnits(t *testing.T) []*CompileUnit {
	t.Helper()
	cus, err := Parse(buildDebugInfo(), buildAbbrev())
	if err != nil {
		t.Fatal(err)
	}
	if len(cus) != 2 {
		t.Fatalf("parsed %d compile units, expected 2", len(cus))
	}
	return cus
}

func TestParseSweep(t *testing.T) {
	cus := parseUnits(t)

	for i, cu := range cus {
		if cu.Version != 4 || cu.Dwarf64 || cu.AddrSize != 8 {
			t.Errorf("unit %d: header %+v", i, cu)
		}
	}
	if cus[1].Offset != uint64(len(buildUnitOne())) {
		t.Errorf("unit 1 starts at %#x, expected %#x", cus[1].Offset, len(buildUnitOne()))
	}
}

func TestParseTruncated(t *testing.T) {
	debugInfo := buildDebugInfo()
	if _, err := Parse(debugInfo[:len(debugInfo)-3], buildAbbrev()); err == nil {
		t.Fatal("expected an error for a truncated section")
	}
}

func TestRootEntry(t *testing.T) {
	cus := parseUnits(t)

	root, err := cus[0].Root()
	if err != nil {
		t.Fatal(err)
	}
	if root.Tag() != dwarf.TagCompileUnit {
		t.Fatalf("root tag %v", root.Tag())
	}
	name, ok, err := root.Attr(dwarf.AttrName)
	if err != nil || !ok {
		t.Fatalf("name attribute: ok=%v err=%v", ok, err)
	}
	s, err := name.Str(buildDebugStr())
	if err != nil {
		t.Fatal(err)
	}
	if s != "main.cpp" {
		t.Fatalf("root name %q", s)
	}
}

func TestCursorWalk(t *testing.T) {
	cus := parseUnits(t)

	root, err := cus[0].Root()
	if err != nil {
		t.Fatal(err)
	}

	var tags []dwarf.Tag
	for cur := root; !cur.AtEnd(); {
		if !cur.Null() {
			tags = append(tags, cur.Tag())
		}
		if err := cur.Next(); err != nil {
			t.Fatal(err)
		}
	}

	want := []dwarf.Tag{
		dwarf.TagCompileUnit,
		dwarf.TagSubprogram, dwarf.TagVariable,
		dwarf.TagSubprogram, dwarf.TagVariable,
		dwarf.TagBaseType,
	}
	if len(tags) != len(want) {
		t.Fatalf("walked %d entries %v, expected %v", len(tags), tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("entry %d: tag %v, expected %v", i, tags[i], want[i])
		}
	}
}

func TestCursorAdvancePastEnd(t *testing.T) {
	cus := parseUnits(t)
	cur, err := cus[1].Root()
	if err != nil {
		t.Fatal(err)
	}
	if err := cur.Next(); err != nil {
		t.Fatal(err)
	}
	if !cur.AtEnd() {
		t.Fatal("expected the cursor to be at the end")
	}
	if err := cur.Next(); err != ErrCursorAtEnd {
		t.Fatalf("got %v, expected ErrCursorAtEnd", err)
	}
}

func TestAttrLookupIdempotent(t *testing.T) {
	cus := parseUnits(t)
	root, err := cus[0].Root()
	if err != nil {
		t.Fatal(err)
	}
	sub := root
	if err := sub.Next(); err != nil {
		t.Fatal(err)
	}

	low, high, ok, err := PCRange(&sub)
	if err != nil || !ok {
		t.Fatalf("PCRange: ok=%v err=%v", ok, err)
	}
	if low != 0x400ad9 || high != 0x400ad9+0x28d {
		t.Fatalf("range [%#x, %#x)", low, high)
	}

	// A second lookup replays the same skips and must agree.
	name, ok, err := sub.Attr(dwarf.AttrName)
	if err != nil || !ok {
		t.Fatalf("name attribute: ok=%v err=%v", ok, err)
	}
	s, _ := name.Str(buildDebugStr())
	if s != "main" {
		t.Fatalf("subprogram name %q", s)
	}

	if _, ok, _ := sub.Attr(dwarf.AttrProducer); ok {
		t.Fatal("found an attribute the entry does not carry")
	}
}

func TestChildren(t *testing.T) {
	cus := parseUnits(t)
	root, err := cus[0].Root()
	if err != nil {
		t.Fatal(err)
	}

	nested, err := root.Children()
	if err != nil {
		t.Fatal(err)
	}
	// All descendants of the root, null sentinels excluded.
	if len(nested) != 5 {
		t.Fatalf("got %d nested entries", len(nested))
	}

	sub := root
	if err := sub.Next(); err != nil {
		t.Fatal(err)
	}
	vars, err := sub.Children()
	if err != nil {
		t.Fatal(err)
	}
	if len(vars) != 1 || vars[0].Tag() != dwarf.TagVariable {
		t.Fatalf("got %d children, first %v", len(vars), vars[0].Tag())
	}
	name, _, _ := vars[0].Attr(dwarf.AttrName)
	if s, _ := name.Str(buildDebugStr()); s != "answer" {
		t.Fatalf("variable name %q", s)
	}
}

func TestContainsPC(t *testing.T) {
	cus := parseUnits(t)

	for _, tc := range []struct {
		unit int
		pc   uint64
		want bool
	}{
		{0, 0x400ad9, true},
		{0, 0x400fff, true},
		{0, 0x401000, false}, // high_pc is exclusive
		{0, 0x400542, false},
		{1, 0x401756, true},
		{1, 0x4018c1, true}, // range list ends are inclusive
		{1, 0x401940, true},
		{1, 0x402000, false},
	} {
		got, err := cus[tc.unit].ContainsPC(tc.pc, buildDebugRanges())
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("unit %d pc %#x: got %v", tc.unit, tc.pc, got)
		}
	}
}
