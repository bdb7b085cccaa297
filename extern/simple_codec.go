package extern

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SimpleCodec is a reference PayloadCodec used by palog's own tests and by
// callers that have not yet wired in a production metadata subsystem. Its
// wire format is intentionally minimal:
//
//	[numPMIDs:u32][pmid:u32]...
//	[numValueSets:u32]{ [pmid:u32][numValues:u32]{ [instance:i32][format:u8][inline:f64] }... }...
//
// SimpleCodec carries each value's format tag but not its IndirectRef, so
// a DirectPointer/SharedPointer value decodes with a zero IndirectRef; it
// exists to make the rest of the engine exercisable end-to-end, not to
// model the real production wire protocol.
type SimpleCodec struct{}

var _ PayloadCodec = SimpleCodec{}

func (SimpleCodec) Decode(payload []byte) (ResultSet, error) {
	r := &byteReader{buf: payload}

	numPMIDs, err := r.u32()
	if err != nil {
		return ResultSet{}, fmt.Errorf("extern: decode pmid count: %w", err)
	}

	pmids := make([]uint32, 0, numPMIDs)
	for i := uint32(0); i < numPMIDs; i++ {
		v, err := r.u32()
		if err != nil {
			return ResultSet{}, fmt.Errorf("extern: decode pmid[%d]: %w", i, err)
		}
		pmids = append(pmids, v)
	}

	numValueSets, err := r.u32()
	if err != nil {
		return ResultSet{}, fmt.Errorf("extern: decode value-set count: %w", err)
	}

	valueSets := make([]ValueSet, 0, numValueSets)
	for i := uint32(0); i < numValueSets; i++ {
		pmid, err := r.u32()
		if err != nil {
			return ResultSet{}, fmt.Errorf("extern: decode value-set[%d] pmid: %w", i, err)
		}
		numValues, err := r.u32()
		if err != nil {
			return ResultSet{}, fmt.Errorf("extern: decode value-set[%d] count: %w", i, err)
		}

		values := make([]Value, 0, numValues)
		for j := uint32(0); j < numValues; j++ {
			inst, err := r.i32()
			if err != nil {
				return ResultSet{}, fmt.Errorf("extern: decode value[%d][%d] instance: %w", i, j, err)
			}
			format, err := r.u8()
			if err != nil {
				return ResultSet{}, fmt.Errorf("extern: decode value[%d][%d] format: %w", i, j, err)
			}
			inline, err := r.f64()
			if err != nil {
				return ResultSet{}, fmt.Errorf("extern: decode value[%d][%d] inline: %w", i, j, err)
			}
			values = append(values, Value{Instance: inst, Format: format, Inline: inline})
		}

		valueSets = append(valueSets, ValueSet{PMID: pmid, Values: values})
	}

	return ResultSet{PMIDs: pmids, ValueSets: valueSets}, nil
}

func (SimpleCodec) Encode(rs ResultSet) ([]byte, error) {
	w := &byteWriter{}

	w.u32(uint32(len(rs.PMIDs)))
	for _, pmid := range rs.PMIDs {
		w.u32(pmid)
	}

	w.u32(uint32(len(rs.ValueSets)))
	for _, vs := range rs.ValueSets {
		w.u32(vs.PMID)
		w.u32(uint32(len(vs.Values)))
		for _, v := range vs.Values {
			w.i32(v.Instance)
			w.u8(v.Format)
			w.f64(v.Inline)
		}
	}

	return w.buf, nil
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("short buffer: need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))
	}
	return nil
}

func (r *byteReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *byteReader) f64() (float64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	bits := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return math.Float64frombits(bits), nil
}

type byteWriter struct {
	buf []byte
}

func (w *byteWriter) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *byteWriter) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *byteWriter) i32(v int32) {
	w.u32(uint32(v))
}

func (w *byteWriter) f64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf = append(w.buf, b[:]...)
}
