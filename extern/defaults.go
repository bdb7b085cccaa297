package extern

import (
	"os"

	"github.com/kvarch/palog/compress"
)

// NoDerivedConstants is a MetadataResolver that reports every pmid as a
// regular (non-derived-constant) metric, matching the common case where a
// caller has not wired a real metadata subsystem.
type NoDerivedConstants struct{}

var _ MetadataResolver = NoDerivedConstants{}

func (NoDerivedConstants) IsDerivedConstant(pmid uint32) bool { return false }

// StaticResolver is a MetadataResolver backed by a fixed set of
// derived-constant pmids, useful in tests that need fetch's skip rule to
// actually trigger.
type StaticResolver struct {
	DerivedConstants map[uint32]bool
}

var _ MetadataResolver = StaticResolver{}

func (s StaticResolver) IsDerivedConstant(pmid uint32) bool {
	return s.DerivedConstants[pmid]
}

// AllInstances is an InstanceProfile that retains every instance of every
// pmid, matching the common case where a caller has not restricted any
// indom's instance set.
type AllInstances struct{}

var _ InstanceProfile = AllInstances{}

func (AllInstances) Keep(pmid uint32, instance int32) bool { return true }

// NoopDetector is a CompressionDetector that never reports compression;
// it is the default when no detector collaborator is wired.
type NoopDetector struct{}

var _ CompressionDetector = NoopDetector{}

func (NoopDetector) Detect(path string) (compress.Codec, error) {
	return compress.NewNoOpCompressor(), nil
}

// ExtensionDetector is a CompressionDetector that selects a codec from a
// volume file's suffix, the common shape a production detector takes.
type ExtensionDetector struct{}

var _ CompressionDetector = ExtensionDetector{}

func (ExtensionDetector) Detect(path string) (compress.Codec, error) {
	switch {
	case hasSuffix(path, ".zst"):
		return compress.NewZstdCompressor(), nil
	case hasSuffix(path, ".s2"):
		return compress.NewS2Compressor(), nil
	case hasSuffix(path, ".lz4"):
		return compress.NewLZ4Compressor(), nil
	default:
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return compress.NewNoOpCompressor(), nil
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
