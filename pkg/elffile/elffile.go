// Package elffile locates the debug sections of 64-bit little-endian ELF
// executables. It parses the file header, program headers, section headers
// and the section-name string table up front, and reads section contents
// lazily into an owned, cached buffer.
//
// The reader is the longest-lived component of the debugger: every DWARF
// handle (compile unit, cursor, attribute view) borrows into the section
// buffers cached here and must not outlive the reader.
package elffile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	elfClass64  = 2
	elfData2LSB = 1
	shtNobits   = 8
	headerSize  = 64
	progHdrSize = 56
	sectHdrSize = 64
)

// FileHeader is the ELF-64 file header.
type FileHeader struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

// ProgHeader is an ELF-64 program header.
type ProgHeader struct {
	Type   uint32
	Flags  uint32
	Off    uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// SectionHeader is an ELF-64 section header.
type SectionHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Off       uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

// Section pairs a parsed section header with its resolved name.
type Section struct {
	SectionHeader
	Name string
}

// SectionAbsentError is returned when a named section does not exist in
// the file.
type SectionAbsentError struct {
	Name string
}

func (e *SectionAbsentError) Error() string {
	return fmt.Sprintf("no section named %s", e.Name)
}

// File is an open ELF file. Section contents are read on first use and
// cached for the lifetime of the reader; the cached buffers are never
// reallocated, so borrowed slices stay valid.
type File struct {
	r        io.ReaderAt
	closer   io.Closer
	Header   FileHeader
	Progs    []ProgHeader
	Sections []*Section

	cache map[string][]byte
}

// Open parses the ELF file at path.
func Open(path string) (*File, error) {
	osf, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := New(osf)
	if err != nil {
		osf.Close()
		return nil, err
	}
	f.closer = osf
	return f, nil
}

// New parses an ELF file from r.
func New(r io.ReaderAt) (*File, error) {
	f := &File{r: r, cache: make(map[string][]byte)}

	sr := io.NewSectionReader(r, 0, headerSize)
	if err := binary.Read(sr, binary.LittleEndian, &f.Header); err != nil {
		return nil, fmt.Errorf("reading the ELF file header: %v", err)
	}
	ident := f.Header.Ident
	if ident[0] != 0x7f || ident[1] != 'E' || ident[2] != 'L' || ident[3] != 'F' {
		return nil, fmt.Errorf("bad ELF magic % x", ident[:4])
	}
	if ident[4] != elfClass64 {
		return nil, fmt.Errorf("unsupported ELF class %d, only ELF-64 is handled", ident[4])
	}
	if ident[5] != elfData2LSB {
		return nil, fmt.Errorf("unsupported ELF data encoding %d, only little-endian is handled", ident[5])
	}

	if err := f.readProgHeaders(); err != nil {
		return nil, err
	}
	if err := f.readSectionHeaders(); err != nil {
		return nil, err
	}
	return f, nil
}

// Close releases the underlying file, invalidating every borrowed slice.
func (f *File) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

func (f *File) readProgHeaders() error {
	if f.Header.Phnum == 0 {
		return nil
	}
	if f.Header.Phentsize != progHdrSize {
		return fmt.Errorf("unexpected program header size %d", f.Header.Phentsize)
	}
	sr := io.NewSectionReader(f.r, int64(f.Header.Phoff), int64(f.Header.Phnum)*progHdrSize)
	f.Progs = make([]ProgHeader, f.Header.Phnum)
	if err := binary.Read(sr, binary.LittleEndian, &f.Progs); err != nil {
		return fmt.Errorf("reading the program header table: %v", err)
	}
	return nil
}

func (f *File) readSectionHeaders() error {
	if f.Header.Shnum == 0 {
		return nil
	}
	if f.Header.Shentsize != sectHdrSize {
		return fmt.Errorf("unexpected section header size %d", f.Header.Shentsize)
	}
	if f.Header.Shstrndx >= f.Header.Shnum {
		return fmt.Errorf("section name table index %d out of range", f.Header.Shstrndx)
	}

	sr := io.NewSectionReader(f.r, int64(f.Header.Shoff), int64(f.Header.Shnum)*sectHdrSize)
	headers := make([]SectionHeader, f.Header.Shnum)
	if err := binary.Read(sr, binary.LittleEndian, &headers); err != nil {
		return fmt.Errorf("reading the section header table: %v", err)
	}

	// The section-name string table gives every section its name.
	strtab := make([]byte, headers[f.Header.Shstrndx].Size)
	if _, err := io.ReadFull(io.NewSectionReader(f.r, int64(headers[f.Header.Shstrndx].Off), int64(len(strtab))), strtab); err != nil {
		return fmt.Errorf("reading the section name table: %v", err)
	}

	f.Sections = make([]*Section, len(headers))
	for i := range headers {
		name, err := stringAt(strtab, headers[i].Name)
		if err != nil {
			return fmt.Errorf("section %d: %v", i, err)
		}
		f.Sections[i] = &Section{SectionHeader: headers[i], Name: name}
	}
	return nil
}

func stringAt(strtab []byte, off uint32) (string, error) {
	if off >= uint32(len(strtab)) {
		return "", fmt.Errorf("name offset %#x past the end of the string table", off)
	}
	end := bytes.IndexByte(strtab[off:], 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated name at offset %#x", off)
	}
	return string(strtab[off : int(off)+end]), nil
}

// Section returns the contents of the first section with the given name.
// The returned slice is owned by the reader and read-only; it stays valid
// until Close.
func (f *File) Section(name string) ([]byte, error) {
	if data, ok := f.cache[name]; ok {
		return data, nil
	}

	for _, s := range f.Sections {
		if s.Name != name {
			continue
		}
		data := make([]byte, s.Size)
		if s.Type != shtNobits {
			if _, err := io.ReadFull(io.NewSectionReader(f.r, int64(s.Off), int64(s.Size)), data); err != nil {
				return nil, fmt.Errorf("reading section %s: %v", name, err)
			}
		}
		f.cache[name] = data
		return data, nil
	}
	return nil, &SectionAbsentError{Name: name}
}

// HasSection reports whether a section with the given name exists.
func (f *File) HasSection(name string) bool {
	for _, s := range f.Sections {
		if s.Name == name {
			return true
		}
	}
	return false
}
