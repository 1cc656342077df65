package abbrev

import (
	"bytes"
	"debug/dwarf"
	"testing"

	"github.com/slatedbg/slate/pkg/dwarf/form"
	"github.com/slatedbg/slate/pkg/dwarf/leb128"
)

// buildTable assembles an abbreviation table with two declarations, the
// shape clang emits for a small translation unit.
func buildTable() []byte {
	var buf bytes.Buffer

	// 1: DW_TAG_compile_unit, children, name/strp stmt_list/sec_offset
	leb128.EncodeUnsigned(&buf, 1)
	leb128.EncodeUnsigned(&buf, uint64(dwarf.TagCompileUnit))
	buf.WriteByte(1)
	leb128.EncodeUnsigned(&buf, uint64(dwarf.AttrName))
	leb128.EncodeUnsigned(&buf, uint64(form.Strp))
	leb128.EncodeUnsigned(&buf, uint64(dwarf.AttrStmtList))
	leb128.EncodeUnsigned(&buf, uint64(form.SecOffset))
	buf.WriteByte(0)
	buf.WriteByte(0)

	// 2: DW_TAG_subprogram, no children, low_pc/addr high_pc/data4
	leb128.EncodeUnsigned(&buf, 2)
	leb128.EncodeUnsigned(&buf, uint64(dwarf.TagSubprogram))
	buf.WriteByte(0)
	leb128.EncodeUnsigned(&buf, uint64(dwarf.AttrLowpc))
	leb128.EncodeUnsigned(&buf, uint64(form.Addr))
	leb128.EncodeUnsigned(&buf, uint64(dwarf.AttrHighpc))
	leb128.EncodeUnsigned(&buf, uint64(form.Data4))
	buf.WriteByte(0)
	buf.WriteByte(0)

	// Table terminator.
	buf.WriteByte(0)

	return buf.Bytes()
}

func TestResolve(t *testing.T) {
	table := buildTable()

	entry, err := Resolve(table, 2)
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil {
		t.Fatal("declaration 2 not found")
	}
	if entry.Tag != dwarf.TagSubprogram || entry.Children {
		t.Fatalf("got tag %v children %v", entry.Tag, entry.Children)
	}
	if len(entry.Attrs) != 2 || len(entry.Forms) != 2 {
		t.Fatalf("got %d attrs %d forms", len(entry.Attrs), len(entry.Forms))
	}
	if entry.Attrs[0] != dwarf.AttrLowpc || entry.Forms[0] != form.Addr {
		t.Fatalf("attribute 0 mismatch: %v %v", entry.Attrs[0], entry.Forms[0])
	}
	if entry.Attrs[1] != dwarf.AttrHighpc || entry.Forms[1] != form.Data4 {
		t.Fatalf("attribute 1 mismatch: %v %v", entry.Attrs[1], entry.Forms[1])
	}
}

func TestResolveFirst(t *testing.T) {
	entry, err := Resolve(buildTable(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil || entry.Tag != dwarf.TagCompileUnit || !entry.Children {
		t.Fatalf("got %+v", entry)
	}
}

func TestResolveExhausted(t *testing.T) {
	entry, err := Resolve(buildTable(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Fatalf("expected a null entry, got %+v", entry)
	}
}

func TestResolveTruncated(t *testing.T) {
	table := buildTable()
	if _, err := Resolve(table[:2], 2); err == nil {
		t.Fatal("expected an error for a truncated table")
	}
}
