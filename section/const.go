package section

// Label wire-format sizes and magic numbers. See doc.go for the full
// on-disk layout of v2 and v3 labels.
const (
	// MagicBase is the fixed upper-24-bits magic constant shared by both
	// label wire versions; the low byte carries the LabelVersion.
	MagicBase = 0x50310000

	// MagicMask isolates the upper 24 bits of the magic word that must
	// equal MagicBase regardless of version.
	MagicMask = 0xFFFFFF00
	// MagicVersionMask isolates the low byte of the magic word, the
	// encoded LabelVersion.
	MagicVersionMask = 0x000000FF

	// V2HostnameSize is the fixed, null-padded hostname field width in a
	// v2 label.
	V2HostnameSize = 64
	// V2TimezoneSize is the fixed, null-padded timezone field width in a
	// v2 label.
	V2TimezoneSize = 40

	// V2LabelBodySize is the size in bytes of the v2 label body between
	// the two framing length words: magic(4)+pid(4)+sec(4)+usec(4)+vol(4)
	// +hostname(64)+timezone(40).
	V2LabelBodySize = 4 + 4 + 4 + 4 + 4 + V2HostnameSize + V2TimezoneSize
	// V2LabelSize is the total on-disk size of a v2 label record,
	// including the leading and trailing 4-byte length words.
	V2LabelSize = 4 + V2LabelBodySize + 4

	// V3FixedBodySize is the size in bytes of the fixed-width portion of
	// a v3 label body: magic(4)+pid(4)+sec(8)+nsec(4)+vol(4)+
	// feature_bits(2)+hostname_len(2)+timezone_len(2)+zoneinfo_len(2).
	V3FixedBodySize = 4 + 4 + 8 + 4 + 4 + 2 + 2 + 2 + 2
	// V3Alignment is the byte boundary v3 label records are padded to.
	V3Alignment = 8

	// V2IndexEntrySize is the fixed on-disk size of a v2 temporal index
	// entry: sec(4)+usec(4)+vol(4)+meta_offset(4)+data_offset(4).
	V2IndexEntrySize = 4 + 4 + 4 + 4 + 4
	// V3IndexEntrySize is the fixed on-disk size of a v3 temporal index
	// entry: sec(8)+nsec(4)+vol(4)+meta_offset(8)+data_offset(8).
	V3IndexEntrySize = 8 + 4 + 4 + 8 + 8

	// FrameOverhead is the combined size of a data record's leading and
	// trailing length words.
	FrameOverhead = 8

	// MetaVolumeID and IndexVolumeID are the two reserved pseudo-volume
	// identifiers named in the data model; neither is a valid data
	// volume id.
	MetaVolumeID  = -1
	IndexVolumeID = -2
)
