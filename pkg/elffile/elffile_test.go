package elffile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// buildELF assembles a minimal ELF-64 image in memory: the file header,
// a section name table and the named sections, with the section header
// table at the end of the image.
func buildELF(t *testing.T, sections map[string][]byte) []byte {
	t.Helper()

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	// Deterministic layout regardless of map order.
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}

	// Section name string table; entry 0 is the empty name.
	var strtab bytes.Buffer
	strtab.WriteByte(0)
	shstrtabName := uint32(strtab.Len())
	strtab.WriteString(".shstrtab\x00")
	nameOff := make(map[string]uint32)
	for _, name := range names {
		nameOff[name] = uint32(strtab.Len())
		strtab.WriteString(name)
		strtab.WriteByte(0)
	}

	var img bytes.Buffer
	img.Write(make([]byte, headerSize)) // header written last

	type placed struct {
		name string
		off  uint64
		size uint64
	}
	var layout []placed
	for _, name := range names {
		layout = append(layout, placed{name, uint64(img.Len()), uint64(len(sections[name]))})
		img.Write(sections[name])
	}
	strtabOff := uint64(img.Len())
	img.Write(strtab.Bytes())

	shoff := uint64(img.Len())
	// Null section, then the named sections, then .shstrtab.
	binary.Write(&img, binary.LittleEndian, SectionHeader{})
	for _, p := range layout {
		binary.Write(&img, binary.LittleEndian, SectionHeader{
			Name: nameOff[p.name],
			Type: 1, // SHT_PROGBITS
			Off:  p.off,
			Size: p.size,
		})
	}
	binary.Write(&img, binary.LittleEndian, SectionHeader{
		Name: shstrtabName,
		Type: 3, // SHT_STRTAB
		Off:  strtabOff,
		Size: uint64(strtab.Len()),
	})

	hdr := FileHeader{
		Type:      2, // ET_EXEC
		Machine:   62,
		Version:   1,
		Entry:     0x400ad9,
		Shoff:     shoff,
		Ehsize:    headerSize,
		Shentsize: sectHdrSize,
		Shnum:     uint16(len(layout) + 2),
		Shstrndx:  uint16(len(layout) + 1),
	}
	copy(hdr.Ident[:], []byte{0x7f, 'E', 'L', 'F', elfClass64, elfData2LSB, 1})

	var hdrBuf bytes.Buffer
	binary.Write(&hdrBuf, binary.LittleEndian, hdr)
	out := img.Bytes()
	copy(out[:headerSize], hdrBuf.Bytes())
	return out
}

func TestSection(t *testing.T) {
	img := buildELF(t, map[string][]byte{
		".debug_info":   []byte("info-bytes"),
		".debug_abbrev": []byte("abbrev"),
		".text":         {0x55, 0x48, 0x89, 0xe5},
	})

	f, err := New(bytes.NewReader(img))
	if err != nil {
		t.Fatal(err)
	}

	data, err := f.Section(".debug_info")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "info-bytes" {
		t.Fatalf("got %q", data)
	}

	// The cached slice must be returned on subsequent calls.
	again, err := f.Section(".debug_info")
	if err != nil {
		t.Fatal(err)
	}
	if &data[0] != &again[0] {
		t.Fatal("section contents were re-read instead of cached")
	}
}

func TestSectionAbsent(t *testing.T) {
	img := buildELF(t, map[string][]byte{".text": {0xc3}})
	f, err := New(bytes.NewReader(img))
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.Section(".debug_loc")
	var absent *SectionAbsentError
	if !errors.As(err, &absent) {
		t.Fatalf("got %v, expected SectionAbsentError", err)
	}
	if absent.Name != ".debug_loc" {
		t.Fatalf("got name %q", absent.Name)
	}
	if f.HasSection(".debug_loc") {
		t.Fatal("HasSection disagrees with Section")
	}
}

func TestSectionNames(t *testing.T) {
	img := buildELF(t, map[string][]byte{
		".debug_line": []byte("line"),
		".debug_str":  []byte("str"),
	})
	f, err := New(bytes.NewReader(img))
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{".debug_line", ".debug_str", ".shstrtab"} {
		if !f.HasSection(name) {
			t.Errorf("section %s not found", name)
		}
	}
	if f.Header.Entry != 0x400ad9 || f.Header.Type != 2 {
		t.Fatalf("file header %+v", f.Header)
	}
}

func TestRejectsForeignFiles(t *testing.T) {
	if _, err := New(bytes.NewReader(make([]byte, 128))); err == nil {
		t.Fatal("expected an error for a non-ELF image")
	}

	img := buildELF(t, map[string][]byte{".text": {0xc3}})
	img[4] = 1 // ELFCLASS32
	if _, err := New(bytes.NewReader(img)); err == nil {
		t.Fatal("expected an error for an ELF-32 image")
	}

	img = buildELF(t, map[string][]byte{".text": {0xc3}})
	img[5] = 2 // big-endian
	if _, err := New(bytes.NewReader(img)); err == nil {
		t.Fatal("expected an error for a big-endian image")
	}
}
