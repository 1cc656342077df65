// Package util provides the byte-stream helpers shared by the DWARF
// section decoders: null-terminated string reads, fixed-width
// little-endian reads and the 32/64-bit DWARF length escape.
package util

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ParseString reads a null-terminated string from data.
func ParseString(data *bytes.Buffer) (string, error) {
	str, err := data.ReadString(0x0)
	if err != nil {
		return "", fmt.Errorf("could not parse string: %v", err)
	}

	return str[:len(str)-1], nil
}

// ReadUintRaw reads an integer of size bytes, with the specified byte order,
// from reader.
func ReadUintRaw(reader io.Reader, order binary.ByteOrder, size int) (uint64, error) {
	switch size {
	case 1:
		var n uint8
		if err := binary.Read(reader, order, &n); err != nil {
			return 0, err
		}
		return uint64(n), nil
	case 2:
		var n uint16
		if err := binary.Read(reader, order, &n); err != nil {
			return 0, err
		}
		return uint64(n), nil
	case 4:
		var n uint32
		if err := binary.Read(reader, order, &n); err != nil {
			return 0, err
		}
		return uint64(n), nil
	case 8:
		var n uint64
		if err := binary.Read(reader, order, &n); err != nil {
			return 0, err
		}
		return n, nil
	}
	return 0, fmt.Errorf("not supported size %d", size)
}

// WriteUint writes an integer of size bytes to writer, in the specified byte order.
func WriteUint(writer io.Writer, order binary.ByteOrder, size int, data uint64) error {
	switch size {
	case 1:
		return binary.Write(writer, order, uint8(data))
	case 2:
		return binary.Write(writer, order, uint16(data))
	case 4:
		return binary.Write(writer, order, uint32(data))
	case 8:
		return binary.Write(writer, order, data)
	}
	return fmt.Errorf("not supported size %d", size)
}

// ReadDwarfLength reads a DWARF unit length from buf. An initial value of
// 0xffffffff selects the 64-bit DWARF format, where the actual length
// follows as a uint64 (DWARF v4 standard, section 7.4).
func ReadDwarfLength(buf *bytes.Buffer) (length uint64, dwarf64 bool, err error) {
	n, err := ReadUintRaw(buf, binary.LittleEndian, 4)
	if err != nil {
		return 0, false, err
	}
	if n != 0xffffffff {
		return n, false, nil
	}
	length, err = ReadUintRaw(buf, binary.LittleEndian, 8)
	return length, true, err
}
