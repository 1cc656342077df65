// Package abbrev decodes .debug_abbrev entries: the per-compile-unit
// dictionary that gives each debug information entry its tag, children
// flag and (attribute, form) list. See section 7.5.3 of the DWARF v4
// standard.
package abbrev

import (
	"bytes"
	"debug/dwarf"
	"fmt"

	"github.com/slatedbg/slate/pkg/dwarf/form"
	"github.com/slatedbg/slate/pkg/dwarf/leb128"
)

// Entry is one decoded abbreviation declaration. Attrs[i] is encoded with
// Forms[i]; the (0,0) terminator pair is consumed, not stored.
type Entry struct {
	Code     uint64
	Tag      dwarf.Tag
	Children bool
	Attrs    []dwarf.Attr
	Forms    []form.Form
}

// Resolve scans the abbreviation table at the compile unit's abbrev base
// for the declaration with the given code. A nil entry with a nil error
// means the table was exhausted without finding code.
func Resolve(table []byte, code uint64) (*Entry, error) {
	buf := bytes.NewBuffer(table)
	for {
		entry, err := next(buf)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, nil
		}
		if entry.Code == code {
			return entry, nil
		}
	}
}

// next decodes the declaration at the front of buf. A nil entry means the
// table terminator (or a null tag) was reached.
func next(buf *bytes.Buffer) (*Entry, error) {
	code, c := leb128.DecodeUnsigned(buf)
	if c == 0 || code == 0 {
		return nil, nil
	}

	tag, c := leb128.DecodeUnsigned(buf)
	if c == 0 {
		return nil, fmt.Errorf("abbreviation table truncated reading the tag of declaration %d", code)
	}
	if tag == 0 {
		return nil, nil
	}

	children, err := buf.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("abbreviation table truncated reading the children flag of declaration %d", code)
	}

	entry := &Entry{
		Code:     code,
		Tag:      dwarf.Tag(tag),
		Children: children != 0,
	}

	for {
		attr, c := leb128.DecodeUnsigned(buf)
		if c == 0 {
			return nil, fmt.Errorf("abbreviation table truncated reading the attributes of declaration %d", code)
		}
		f, c := leb128.DecodeUnsigned(buf)
		if c == 0 {
			return nil, fmt.Errorf("abbreviation table truncated reading the forms of declaration %d", code)
		}
		if attr == 0 && f == 0 {
			break
		}
		entry.Attrs = append(entry.Attrs, dwarf.Attr(attr))
		entry.Forms = append(entry.Forms, form.Form(f))
	}

	return entry, nil
}
