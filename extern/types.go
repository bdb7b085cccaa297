// Package extern names the narrow interfaces through which palog's
// archive reading engine reaches collaborators that are explicitly out of
// its scope: the metadata subsystem, the wire-protocol payload decoder,
// and per-file compression detection. palog ships reference
// implementations of each (SimpleCodec, NoDerivedConstants and
// StaticResolver, AllInstances, NoopDetector and ExtensionDetector) so the
// module is self-testing without a production metadata subsystem wired in.
package extern

import "github.com/kvarch/palog/compress"

// ValueFormat tags how a Value's payload should be interpreted. It
// mirrors format.ValueFormat but lives in extern because it is part of
// the PayloadCodec contract, not the on-disk label/index wire format.
type ValueFormat = uint8

const (
	ValueFormatInline         ValueFormat = 1
	ValueFormatDirectPointer  ValueFormat = 2
	ValueFormatSharedPointer  ValueFormat = 3
)

// IndirectRef locates an out-of-line value referenced by a DirectPointer
// or SharedPointer Value.
type IndirectRef struct {
	Offset int
	Length int
}

// Value is one instance's sample within a ValueSet.
type Value struct {
	Instance int32
	Format   ValueFormat
	Inline   float64
	Indirect IndirectRef
}

// ValueSet is the set of per-instance Values collected for one pmid
// within a single decoded record.
type ValueSet struct {
	PMID   uint32
	Values []Value
}

// ResultSet is the decoded form of a DataRecord's payload. A ResultSet
// with zero PMIDs is a mark record.
type ResultSet struct {
	PMIDs     []uint32
	ValueSets []ValueSet
}

// NumPMIDs reports len(PMIDs); it exists so callers reading the count off
// a ResultSet do not need to remember that a mark record has a nil,
// not empty-non-nil, slice.
func (rs ResultSet) NumPMIDs() int {
	return len(rs.PMIDs)
}

// IsMark reports whether rs carries zero metric identifiers, the
// defining property of a synthesized gap-marker record.
func (rs ResultSet) IsMark() bool {
	return len(rs.PMIDs) == 0
}

// PayloadCodec decodes/encodes the opaque tail of a DataRecord.
// Production callers implement this against the real wire-protocol
// decoder shared with the metadata subsystem; palog ships SimpleCodec as
// a reference/test implementation.
type PayloadCodec interface {
	Decode(payload []byte) (ResultSet, error)
	Encode(rs ResultSet) ([]byte, error)
}

// MetadataResolver resolves pmids to derived-constant status, used by
// fetch's "skip if none of the requested pmids is present and at least
// one is not a derived constant" rule.
type MetadataResolver interface {
	IsDerivedConstant(pmid uint32) bool
}

// InstanceProfile filters which instance ids fetch retains for a given
// pmid's value set, the production counterpart of PCP's per-indom
// instance profile (pmAddProfile/pmDelProfile).
type InstanceProfile interface {
	// Keep reports whether instance should survive fetch's projection of
	// pmid's value set.
	Keep(pmid uint32, instance int32) bool
}

// CompressionDetector inspects a not-yet-opened volume file and reports
// the codec to use, or a compress.NoOpCompressor if the volume is stored
// raw.
type CompressionDetector interface {
	Detect(path string) (compress.Codec, error)
}
