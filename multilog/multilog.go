// Package multilog composes a time-ordered sequence of archives into one
// continuous stream: it walks archive boundaries, synthesizes gap-marker
// records, detects temporal overlap between neighbouring archives, and
// implements the coarse-to-fine set_time/fetch operations the top-level
// reader engine exposes to callers.
package multilog

import (
	"sort"

	"github.com/kvarch/palog/archive"
	"github.com/kvarch/palog/errs"
	"github.com/kvarch/palog/extern"
	"github.com/kvarch/palog/internal/shared"
	"github.com/kvarch/palog/record"
	"github.com/kvarch/palog/section"
)

// Mode is the context's traversal intent, independent of the direction
// passed to any one ReadNext call.
type Mode int

const (
	ModeForward Mode = iota
	ModeBackward
	ModeInterpolate
)

// Cursor is the context's position: which archive is current, the
// origin timestamp (that of the last record or mark ReadNext returned;
// SetTime does not change it), and the mark-synthesis bookkeeping for the
// current boundary.
type Cursor struct {
	ArchiveIndex int
	Mode         Mode
	OriginSec    int64
	OriginNsec   int32
	Serial       bool

	lastDir     archive.Direction
	haveLastDir bool
	markDoneDir archive.Direction
	markDone    bool
}

// Record is one record produced by ReadNext or Fetch: a timestamp, its
// decoded payload, and whether it is a synthesized mark.
type Record struct {
	Sec     int64
	Nsec    int32
	Payload extern.ResultSet
}

// Context is an ordered sequence of archives traversed as a single
// logical stream, plus the cursor state describing where reading
// currently stands.
type Context struct {
	archives []*archive.Archive
	cursor   Cursor
	resolver extern.MetadataResolver
	profile  extern.InstanceProfile
}

// Open opens every archive named in paths (in the order given), sorts
// them by label start-time, verifies every archive shares the first
// archive's hostname, and returns a Context positioned before the first
// archive.
//
// Any failure unwinds every archive opened so far.
func Open(paths []string, payloadCodec extern.PayloadCodec, detector extern.CompressionDetector, resolver extern.MetadataResolver, profile extern.InstanceProfile, opts ...archive.Option) (ctx *Context, err error) {
	if resolver == nil {
		resolver = extern.NoDerivedConstants{}
	}
	if profile == nil {
		profile = extern.AllInstances{}
	}

	archives := make([]*archive.Archive, 0, len(paths))
	defer func() {
		if err != nil {
			for _, a := range archives {
				a.Close()
			}
		}
	}()

	for _, p := range paths {
		a, openErr := archive.Open(p, payloadCodec, detector, opts...)
		if openErr != nil {
			return nil, openErr
		}
		archives = append(archives, a)
	}

	sort.SliceStable(archives, func(i, j int) bool {
		si, ni := archives[i].StartTime()
		sj, nj := archives[j].StartTime()
		return record.Compare(si, ni, sj, nj) < 0
	})

	if len(archives) > 0 {
		first := archives[0].Label().Hostname
		for _, a := range archives[1:] {
			if a.Label().Hostname != first {
				return nil, errs.ErrHostnameMismatch
			}
		}
	}

	return &Context{archives: archives, resolver: resolver, profile: profile}, nil
}

// Close releases every archive owned by this Context.
func (c *Context) Close() error {
	var firstErr error
	for _, a := range c.archives {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Context) current() (*archive.Archive, error) {
	if len(c.archives) == 0 {
		return nil, errs.ErrNotArchive
	}
	if c.cursor.ArchiveIndex < 0 || c.cursor.ArchiveIndex >= len(c.archives) {
		return nil, errs.ErrNoContext
	}
	return c.archives[c.cursor.ArchiveIndex], nil
}

// Label returns a deep copy of archiveIndex's label (0 = earliest
// archive, by start time).
func (c *Context) Label(archiveIndex int) (section.Label, error) {
	if archiveIndex < 0 || archiveIndex >= len(c.archives) {
		return section.Label{}, errs.ErrNotArchive
	}
	return c.archives[archiveIndex].Label(), nil
}

// GetStart returns the earliest archive's start timestamp.
func (c *Context) GetStart() (int64, int32, error) {
	if len(c.archives) == 0 {
		return 0, 0, errs.ErrNotArchive
	}
	sec, nsec := c.archives[0].StartTime()
	return sec, nsec, nil
}

// GetEnd returns the latest archive's end timestamp.
func (c *Context) GetEnd() (int64, int32, error) {
	if len(c.archives) == 0 {
		return 0, 0, errs.ErrNotArchive
	}
	return c.archives[len(c.archives)-1].End()
}

// SetTime positions the cursor at the coarse seek target for timestamp
// (sec, nsec) under mode, per the archive-selection and temporal-index
// search described for set_time. mode persists on the cursor exactly as
// pmSetMode's mode argument does, governing both archive selection and
// the wrong-side-of-origin corrections below until the next SetTime call.
func (c *Context) SetTime(mode Mode, sec int64, nsec int32) error {
	if len(c.archives) == 0 {
		return errs.ErrNotArchive
	}

	c.cursor.Mode = mode

	i := c.selectArchive(sec, nsec)
	c.cursor.ArchiveIndex = i
	c.cursor.Serial = false
	c.cursor.haveLastDir = false
	c.cursor.markDone = false

	a := c.archives[i]

	if a.Index == nil || len(a.Index.Entries) == 0 {
		if c.cursor.Mode == ModeBackward {
			return a.SeekToEnd()
		}
		return a.SeekToStart()
	}

	lastSize, _ := a.VolumeSize(a.MaxVolume)
	result := a.Index.Search(sec, nsec, a.MaxVolume, lastSize)

	switch {
	case result.BeforeFirst:
		return a.SeekToStart()
	case result.AfterLast:
		return a.SeekToEnd()
	default:
		if err := a.SeekToOffset(result.Entry.Volume, result.Entry.DataOff); err != nil {
			return err
		}

		cmp := record.Compare(result.Entry.Sec, result.Entry.Nsec, sec, nsec)
		if c.cursor.Mode != ModeBackward && cmp >= 0 {
			// The index landed at or after the origin; step back over that
			// record so a subsequent FORWARD read reproduces it.
			if _, err := a.ReadNext(archive.Backward, false); err != nil {
				return err
			}
		}
		if c.cursor.Mode == ModeBackward && cmp > 0 {
			// The nearer entry is later than the origin; step back over its
			// record so a subsequent BACKWARD read starts before it.
			if _, err := a.ReadNext(archive.Backward, false); err != nil {
				return err
			}
		}

		return nil
	}
}

// selectArchive implements the first step of set_time: the first archive
// whose start-time >= T, with FORWARD stepping one back when possible and
// BACKWARD falling back to the last archive when none qualified.
func (c *Context) selectArchive(sec int64, nsec int32) int {
	n := len(c.archives)

	j := n
	for i, a := range c.archives {
		asec, ansec := a.StartTime()
		if record.Compare(asec, ansec, sec, nsec) >= 0 {
			j = i
			break
		}
	}

	if c.cursor.Mode != ModeBackward {
		if j > 0 && j < n {
			return j - 1
		}
		if j == n {
			return n - 1
		}
		return j
	}

	if j == n {
		return n - 1
	}
	if j == 0 {
		return 0
	}
	return j - 1
}

// ReadNext produces the next record relative to the current cursor,
// synthesizing a gap mark and transitioning to the neighbouring archive
// at a boundary, exactly as described for read_next and the
// multi-archive transition.
func (c *Context) ReadNext(dir archive.Direction) (Record, error) {
	if c.cursor.haveLastDir && c.cursor.lastDir != dir {
		c.cursor.markDone = false
	}
	c.cursor.lastDir = dir
	c.cursor.haveLastDir = true

	a, err := c.current()
	if err != nil {
		return Record{}, err
	}

	rec, err := a.ReadNext(dir, a.Paranoid())
	if err == nil {
		c.cursor.OriginSec, c.cursor.OriginNsec = rec.Sec, rec.Nsec
		return Record{Sec: rec.Sec, Nsec: rec.Nsec, Payload: rec.Payload}, nil
	}
	if err != errs.ErrEndOfLog {
		return Record{}, err
	}

	return c.crossBoundary(dir)
}

func (c *Context) crossBoundary(dir archive.Direction) (Record, error) {
	neighbour := c.cursor.ArchiveIndex + 1
	if dir == archive.Backward {
		neighbour = c.cursor.ArchiveIndex - 1
	}
	if neighbour < 0 || neighbour >= len(c.archives) {
		return Record{}, errs.ErrEndOfLog
	}

	if !c.cursor.markDone || c.cursor.markDoneDir != dir {
		mark, err := c.synthesizeMark(dir)
		if err != nil {
			return Record{}, err
		}

		c.cursor.markDone = true
		c.cursor.markDoneDir = dir
		c.cursor.OriginSec, c.cursor.OriginNsec = mark.Sec, mark.Nsec

		return mark, nil
	}

	if err := c.crossTo(neighbour, dir); err != nil {
		return Record{}, err
	}

	return c.ReadNext(dir)
}

func (c *Context) synthesizeMark(dir archive.Direction) (Record, error) {
	a, err := c.current()
	if err != nil {
		return Record{}, err
	}

	var sec int64
	var nsec int32

	if dir == archive.Forward {
		sec, nsec, err = a.End()
		if err != nil {
			return Record{}, err
		}
		sec, nsec = record.AddMillis(sec, nsec, 1)
	} else {
		sec, nsec = a.StartTime()
		sec, nsec = record.AddMillis(sec, nsec, -1)
	}

	return Record{Sec: sec, Nsec: nsec, Payload: extern.ResultSet{}}, nil
}

func (c *Context) crossTo(neighbour int, dir archive.Direction) error {
	cur := c.archives[c.cursor.ArchiveIndex]
	next := c.archives[neighbour]

	if dir == archive.Forward {
		curEndSec, curEndNsec, err := cur.End()
		if err != nil {
			return err
		}
		nextStartSec, nextStartNsec := next.StartTime()
		if record.Compare(nextStartSec, nextStartNsec, curEndSec, curEndNsec) < 0 {
			return errs.ErrLogOverlap
		}
	} else {
		curStartSec, curStartNsec := cur.StartTime()
		nextEndSec, nextEndNsec, err := next.End()
		if err != nil {
			return err
		}
		if record.Compare(curStartSec, curStartNsec, nextEndSec, nextEndNsec) < 0 {
			return errs.ErrLogOverlap
		}
	}

	c.cursor.ArchiveIndex = neighbour
	c.cursor.markDone = false

	if dir == archive.Forward {
		return next.SeekToStart()
	}
	return next.SeekToEnd()
}

// Fetch reads the next record in dir from wherever the cursor stands; it
// does no origin comparison of its own, so no record is discarded for
// lying on the wrong side of a SetTime target, and the starting point is
// the one SetTime's positioning left. It then projects the record onto
// pmids per fetch's rules: an
// empty pmids returns the raw record; otherwise every requested pmid
// not present in the record is filled with the process-wide "no values"
// stub, and the record is skipped entirely (trying the next one) when
// none of the requested pmids is present and at least one is not a
// derived constant. Each surviving value-set is then run through the
// context's instance profile, compacting retained instances to the
// front and shrinking the value count.
func (c *Context) Fetch(dir archive.Direction, pmids []uint32) (Record, error) {
	for {
		rec, err := c.ReadNext(dir)
		if err != nil {
			return Record{}, err
		}

		if len(pmids) == 0 {
			return rec, nil
		}

		projected, any := c.project(rec.Payload, pmids)
		if !any && !c.allDerivedConstants(pmids) {
			continue
		}

		rec.Payload = projected
		return rec, nil
	}
}

func (c *Context) allDerivedConstants(pmids []uint32) bool {
	for _, p := range pmids {
		if !c.resolver.IsDerivedConstant(p) {
			return false
		}
	}
	return true
}

func (c *Context) project(rs extern.ResultSet, pmids []uint32) (extern.ResultSet, bool) {
	byPMID := make(map[uint32]extern.ValueSet, len(rs.ValueSets))
	for _, vs := range rs.ValueSets {
		byPMID[vs.PMID] = vs
	}

	out := extern.ResultSet{PMIDs: pmids}
	any := false

	for _, pmid := range pmids {
		if vs, ok := byPMID[pmid]; ok {
			vs.Values = c.filterInstances(pmid, vs.Values)
			out.ValueSets = append(out.ValueSets, vs)
			any = true
			continue
		}
		out.ValueSets = append(out.ValueSets, shared.NoValueStub(pmid))
	}

	return out, any
}

// filterInstances applies the context's instance profile to values in
// place, compacting the instances pmid's profile retains to the front
// and returning the shrunk slice.
func (c *Context) filterInstances(pmid uint32, values []extern.Value) []extern.Value {
	n := 0
	for _, v := range values {
		if c.profile.Keep(pmid, v.Instance) {
			values[n] = v
			n++
		}
	}

	return values[:n]
}
