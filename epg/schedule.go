package epg

import "github.com/tonalfitness/libisdb/tables"

// segmentInfo tracks one 3-hour schedule segment (up to 8 sections,
// section_number 0-7 within the segment).
type segmentInfo struct {
	sectionCount uint8 // declared section count for this segment (1-8, derived by ScheduleTracker.OnSection)
	sectionFlags uint8 // bit i set once section i of this segment has arrived
}

func (s *segmentInfo) complete() bool {
	if s.sectionCount == 0 {
		return false
	}
	want := uint8(1<<s.sectionCount) - 1
	return s.sectionFlags&want == want
}

// tableInfo tracks one EIT schedule sub-table (table_id 0x50-0x57 or
// 0x58-0x5F), its version, and its 32 segments.
type tableInfo struct {
	version    uint8
	hasVersion bool
	segments   [32]segmentInfo
}

func (t *tableInfo) reset(version uint8) {
	*t = tableInfo{version: version, hasVersion: true}
}

// bank tracks the eight schedule sub-tables of one bank (Basic or
// Extended), per SPEC_FULL.md §D's decision to scope completeness tracking
// per-bank only rather than merging Basic/Extended status.
type bank struct {
	tables [8]tableInfo
}

func (b *bank) onSection(subTable int, version uint8, segment int, sectionInSegment int, segmentSectionCount uint8) {
	if subTable < 0 || subTable >= len(b.tables) {
		return
	}
	t := &b.tables[subTable]
	if !t.hasVersion || t.version != version {
		t.reset(version)
	}
	if segment < 0 || segment >= len(t.segments) {
		return
	}
	seg := &t.segments[segment]
	seg.sectionCount = segmentSectionCount
	seg.sectionFlags |= 1 << uint(sectionInSegment)
}

// isComplete reports whether every segment up through the one
// covering hour has been fully received. hour 0-23 maps to segment
// hour/3 per the 3-hour segment model; completeness additionally
// requires the table carrying that segment itself be known.
func (b *bank) isComplete(hour int) bool {
	segment := hour / 3
	for _, t := range b.tables {
		if !t.hasVersion {
			continue
		}
		if segment < len(t.segments) && t.segments[segment].sectionCount > 0 {
			for s := 0; s <= segment; s++ {
				if !t.segments[s].complete() {
					return false
				}
			}
			return true
		}
	}
	return false
}

func (b *bank) hasSchedule() bool {
	for _, t := range b.tables {
		if t.hasVersion {
			return true
		}
	}
	return false
}

// ScheduleTracker tracks EIT schedule completeness for one service,
// separately for the Basic and Extended banks.
type ScheduleTracker struct {
	basic    bank
	extended bank
}

// OnSection feeds one decoded actual-stream EIT schedule section
// (table_id 0x50-0x5F) into the tracker. Present/following sections
// and "other" schedule sections (0x4E/0x4F, 0x60-0x6F) are not
// schedule-completeness inputs and should not be passed here.
func (s *ScheduleTracker) OnSection(t *tables.EIT) {
	var subTableStart uint8
	var b *bank
	if t.IsExtended() {
		subTableStart = tables.TableIDEITScheduleActualExtendedStart
		b = &s.extended
	} else {
		subTableStart = tables.TableIDEITScheduleActualBasicStart
		b = &s.basic
	}

	subTable := int(t.ID - subTableStart)
	segment := int(t.SectionNumber / 8)
	sectionInSegment := int(t.SectionNumber % 8)

	// segment_last_section_number is relative to the whole table, not
	// the segment; the count of sections within this segment is
	// whichever is smaller: 8, or however many sections remain before
	// segment_last_section_number.
	segmentEndCeiling := (segment+1)*8 - 1
	lastInSegment := int(t.SegmentLastSectionNumber)
	if lastInSegment > segmentEndCeiling {
		lastInSegment = segmentEndCeiling
	}
	sectionCount := uint8(lastInSegment-segment*8) + 1

	b.onSection(subTable, t.VersionNumber, segment, sectionInSegment, sectionCount)
}

// IsComplete reports whether the schedule is fully known for every
// 3-hour segment up to and including the one covering hour (0-23, JST).
func (s *ScheduleTracker) IsComplete(hour int, extended bool) bool {
	if extended {
		return s.extended.isComplete(hour)
	}
	return s.basic.isComplete(hour)
}

// HasSchedule reports whether any schedule data has been received for
// the given bank.
func (s *ScheduleTracker) HasSchedule(extended bool) bool {
	if extended {
		return s.extended.hasSchedule()
	}
	return s.basic.hasSchedule()
}

// Reset clears all tracked completeness state, e.g. on a channel
// retune.
func (s *ScheduleTracker) Reset() {
	*s = ScheduleTracker{}
}
