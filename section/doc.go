// Package section defines the low-level binary structures and constants for
// palog's archive label and temporal index records.
//
// This package provides the foundational types that define the physical
// layout of an archive's on-disk metadata: the label record carried at the
// front of every index, metadata and data-volume file, and the fixed-size
// temporal index entries in the `.index` file. It handles binary
// serialization/deserialization, ensuring consistent byte-level
// representation independent of host endianness.
//
// # Label record
//
// Every archive file (index, metadata, each data volume) begins with a
// label record framed the same way as a data record: a leading length
// word, the label body, and a trailing length word equal to the leading
// one. The body's layout depends on the archive's LabelVersion, encoded in
// the low byte of the magic word (the upper 24 bits are always MagicBase):
//
//	v2 (fixed-size):
//	  magic(4) pid(4) start_sec(4) start_usec(4) vol(4)
//	  hostname(64, null-padded) timezone(40, null-padded)
//
//	v3 (variable-length, 8-byte aligned):
//	  magic(4) pid(4) start_sec(8) start_nsec(4) vol(4) feature_bits(2)
//	  hostname_len(2) timezone_len(2) zoneinfo_len(2)
//	  hostname(var) timezone(var) zoneinfo(var) zero-pad to 8 bytes
//
// ReadLabel positions to offset 0, decodes the preamble (length, magic),
// dispatches on the version byte, then verifies the trailing length word
// matches the leading one.
//
// # Temporal index entry
//
// A TemporalIndexEntry maps a timestamp to the (volume, metadata-offset,
// data-offset) triple a coarse seek should land on. v2 entries are 20
// bytes wide with 32-bit offsets; v3 entries are 32 bytes wide with 64-bit
// offsets and a nanosecond-resolution timestamp. The in-memory
// representation is version-independent; ReadTemporalIndexEntry and
// WriteTemporalIndexEntry translate at the boundary.
package section
