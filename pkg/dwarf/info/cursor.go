package info

import (
	"bytes"
	"debug/dwarf"
	"errors"
	"fmt"

	"github.com/slatedbg/slate/pkg/dwarf/abbrev"
	"github.com/slatedbg/slate/pkg/dwarf/form"
	"github.com/slatedbg/slate/pkg/dwarf/leb128"
)

// Cursor is a forward iterator over the debug information entries of a
// compile unit. Entries are variable-sized and can only be walked with
// knowledge of the previous entry's abbreviation, so a cursor is advanced
// in place with Next rather than modeled as a general iterator.
//
// A cursor on the null entry (abbreviation code zero, the sentinel closing
// a sibling chain) has a nil abbreviation: Tag returns zero and Attr finds
// nothing. A cursor with AtEnd true is past the unit's last entry and must
// not be advanced.
type Cursor struct {
	data    []byte
	pos     int // offset of the current entry's abbreviation code
	end     int
	abbrev  []byte
	dwarf64 bool

	entry   *abbrev.Entry // nil for the null entry
	attrPos int           // offset of the current entry's first attribute byte
}

// ErrCursorAtEnd is returned by Next when the cursor is already past the
// last entry of its compile unit.
var ErrCursorAtEnd = errors.New("advance past the end of the compile unit")

// AtEnd reports whether the cursor is past the last entry.
func (c *Cursor) AtEnd() bool { return c.pos >= c.end }

// Null reports whether the cursor is on the null-entry sentinel or at the
// end of the unit.
func (c *Cursor) Null() bool { return c.AtEnd() || c.entry == nil }

// Tag returns the tag of the current entry, or zero on a null entry.
func (c *Cursor) Tag() dwarf.Tag {
	if c.entry == nil {
		return 0
	}
	return c.entry.Tag
}

// HasChildren reports whether the current entry owns a following chain of
// child entries.
func (c *Cursor) HasChildren() bool {
	return c.entry != nil && c.entry.Children
}

// Offset returns the offset of the current entry relative to the first
// entry of the compile unit.
func (c *Cursor) Offset() int { return c.pos }

// load positions the cursor on the entry whose abbreviation code starts at
// pos, resolving the abbreviation.
func (c *Cursor) load(pos int) error {
	c.entry = nil
	c.pos = pos
	if pos >= c.end {
		c.pos = c.end
		return nil
	}

	buf := bytes.NewBuffer(c.data[pos:c.end])
	before := buf.Len()
	code, n := leb128.DecodeUnsigned(buf)
	if n == 0 {
		return fmt.Errorf("truncated abbreviation code at offset %#x", pos)
	}
	c.attrPos = pos + before - buf.Len()
	if code == 0 {
		return nil
	}

	entry, err := abbrev.Resolve(c.abbrev, code)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("abbreviation %d not declared for this compile unit", code)
	}
	c.entry = entry
	return nil
}

// Next advances the cursor to the following entry, consuming the current
// entry's attribute bytes form by form.
func (c *Cursor) Next() error {
	if c.AtEnd() {
		return ErrCursorAtEnd
	}

	pos := c.attrPos
	if c.entry != nil {
		buf := bytes.NewBuffer(c.data[pos:c.end])
		before := buf.Len()
		for _, f := range c.entry.Forms {
			if err := form.Skip(buf, f, c.dwarf64); err != nil {
				return err
			}
		}
		pos += before - buf.Len()
	}
	return c.load(pos)
}

// Attr looks up an attribute of the current entry by name. The second
// return value reports whether the entry carries the attribute at all;
// callers must check it before using the view.
func (c *Cursor) Attr(name dwarf.Attr) (form.Attr, bool, error) {
	if c.entry == nil {
		return form.Attr{}, false, nil
	}

	index := -1
	for i, a := range c.entry.Attrs {
		if a == name {
			index = i
			break
		}
	}
	if index < 0 {
		return form.Attr{}, false, nil
	}

	// Replay the sized skips for the preceding attributes; the walk is
	// deterministic so lookup is idempotent.
	buf := bytes.NewBuffer(c.data[c.attrPos:c.end])
	before := buf.Len()
	for i := 0; i < index; i++ {
		if err := form.Skip(buf, c.entry.Forms[i], c.dwarf64); err != nil {
			return form.Attr{}, false, err
		}
	}
	p := c.attrPos + before - buf.Len()
	return form.NewAttr(c.entry.Forms[index], c.data[p:c.end], c.dwarf64), true, nil
}

// Children collects the immediate and nested children of the current
// entry, in document order. The null entries closing each sibling chain
// are consumed but not returned.
func (c *Cursor) Children() ([]Cursor, error) {
	if c.entry == nil || !c.entry.Children {
		return nil, nil
	}

	cur := *c
	if err := cur.Next(); err != nil {
		return nil, err
	}

	var nested []Cursor
	depth := 1
	for depth > 0 && !cur.AtEnd() {
		if cur.entry == nil {
			depth--
		} else {
			nested = append(nested, cur)
			if cur.entry.Children {
				depth++
			}
		}
		if depth == 0 {
			break
		}
		if err := cur.Next(); err != nil {
			return nil, err
		}
	}
	return nested, nil
}
