// Package leb128 provides encoders and decoders for the signed and unsigned
// Little Endian Base 128 integer format, defined in the DWARF v4 standard,
// section 7.6.
package leb128
