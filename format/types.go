// Package format defines the small enumerations shared across palog's
// on-disk structures and its pluggable volume compression.
package format

type (
	// LabelVersion identifies which of the two supported label/record
	// wire formats an archive uses. It is carried in the low byte of
	// the label's magic word (see package section).
	LabelVersion uint8
	// CompressionType selects the codec package's (de)compression
	// strategy for a volume whose bytes an external detector has
	// identified as compressed.
	CompressionType uint8
	// ValueFormat is the per-value wire tag used by the paranoid
	// decoder to sanity check a record's payload without understanding
	// its full structure.
	ValueFormat uint8
)

const (
	// V2 is the fixed-size label format: 4-byte sec/usec timestamps,
	// fixed-width null-padded hostname and timezone.
	V2 LabelVersion = 2
	// V3 is the variable-length label format: 8-byte sec + 4-byte nsec
	// timestamps, length-prefixed hostname/timezone/zoneinfo.
	V3 LabelVersion = 3

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.

	// ValueFormatInline means the value is stored directly in the value slot.
	ValueFormatInline ValueFormat = 1
	// ValueFormatDirectPointer means the value slot holds a byte offset
	// into the same record's buffer, pointing at out-of-line data.
	ValueFormatDirectPointer ValueFormat = 2
	// ValueFormatSharedPointer means the value slot references a value
	// shared with other instances in the same result set.
	ValueFormatSharedPointer ValueFormat = 3
)

func (v LabelVersion) String() string {
	switch v {
	case V2:
		return "v2"
	case V3:
		return "v3"
	default:
		return "unknown"
	}
}

// Valid reports whether v is one of the supported label versions.
func (v LabelVersion) Valid() bool {
	return v == V2 || v == V3
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

func (f ValueFormat) String() string {
	switch f {
	case ValueFormatInline:
		return "inline"
	case ValueFormatDirectPointer:
		return "direct-pointer"
	case ValueFormatSharedPointer:
		return "shared-pointer"
	default:
		return "unknown"
	}
}

// Valid reports whether f is one of the three tags the paranoid decoder
// accepts.
func (f ValueFormat) Valid() bool {
	switch f {
	case ValueFormatInline, ValueFormatDirectPointer, ValueFormatSharedPointer:
		return true
	default:
		return false
	}
}
