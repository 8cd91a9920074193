package epg

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/tonalfitness/libisdb/tables"
)

func sampleEIT(serviceID uint16, eventID uint16, start time.Time, dur time.Duration) *tables.EIT {
	return &tables.EIT{
		ID:                tables.TableIDEITPFActual,
		ServiceID:         serviceID,
		TransportStreamID: 1,
		OriginalNetworkID: 2,
		Events: []tables.EITEvent{
			{EventID: eventID, StartTime: start, Duration: dur},
		},
	}
}

func TestUpdateSectionAddsEvent(t *testing.T) {
	is := is.New(t)

	db := NewDatabase()
	start := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	db.UpdateSection(sampleEIT(100, 1, start, time.Hour), NewSourceID())

	svc := ServiceInfo{NetworkID: 2, TransportStreamID: 1, ServiceID: 100}
	is.True(db.IsServiceUpdated(svc))

	events := db.EventList(svc)
	is.Equal(len(events), 1)
	is.Equal(events[0].EventID, uint16(1))

	db.ResetServiceUpdated(svc)
	is.True(!db.IsServiceUpdated(svc))
}

func TestEventAt(t *testing.T) {
	is := is.New(t)

	db := NewDatabase()
	start := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	db.UpdateSection(sampleEIT(100, 1, start, time.Hour), NewSourceID())

	svc := ServiceInfo{NetworkID: 2, TransportStreamID: 1, ServiceID: 100}

	_, ok := db.EventAt(svc, start.Add(30*time.Minute))
	is.True(ok)

	_, ok = db.EventAt(svc, start.Add(2*time.Hour))
	is.True(!ok)
}

func TestMergeServicePreferSourceOnEqualUpdatedTime(t *testing.T) {
	is := is.New(t)

	start := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	svc := ServiceInfo{NetworkID: 2, TransportStreamID: 1, ServiceID: 100}

	dst := NewDatabase()
	dst.UpdateSection(sampleEIT(100, 1, start, time.Hour), NewSourceID())

	src := NewDatabase()
	src.UpdateSection(sampleEIT(100, 1, start, 2*time.Hour), NewSourceID())

	changed := dst.MergeService(src, svc, 0, NewSourceID())
	is.True(changed)

	ev, ok := dst.EventInfo(svc, 1)
	is.True(ok)
	is.Equal(ev.Duration, 2*time.Hour)
}

func TestMergePreferDatabaseEntriesKeepsDestination(t *testing.T) {
	is := is.New(t)

	start := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	svc := ServiceInfo{NetworkID: 2, TransportStreamID: 1, ServiceID: 100}

	dst := NewDatabase()
	dst.UpdateSection(sampleEIT(100, 1, start, time.Hour), NewSourceID())

	src := NewDatabase()
	src.UpdateSection(sampleEIT(100, 1, start, 2*time.Hour), NewSourceID())

	dst.MergeService(src, svc, PreferDatabaseEntries, NewSourceID())

	ev, ok := dst.EventInfo(svc, 1)
	is.True(ok)
	is.Equal(ev.Duration, time.Hour)
}

func TestMergeServiceNewerUpdatedTimeWinsOverFlags(t *testing.T) {
	is := is.New(t)

	start := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	svc := ServiceInfo{NetworkID: 2, TransportStreamID: 1, ServiceID: 100}

	dst := NewDatabase()
	dst.UpdateTOT(&tables.TOT{JSTTime: start})
	dst.UpdateSection(sampleEIT(100, 1, start, time.Hour), NewSourceID())

	src := NewDatabase()
	src.UpdateTOT(&tables.TOT{JSTTime: start.Add(time.Minute)})
	src.UpdateSection(sampleEIT(100, 1, start, 3*time.Hour), NewSourceID())

	// Source is strictly newer: it must win even though
	// PreferDatabaseEntries is set, since the flag only breaks ties.
	changed := dst.MergeService(src, svc, PreferDatabaseEntries, NewSourceID())
	is.True(changed)
	ev, ok := dst.EventInfo(svc, 1)
	is.True(ok)
	is.Equal(ev.Duration, 3*time.Hour)
}

func TestMergeServiceOlderSourceLosesEvenWithoutPreferDatabaseEntries(t *testing.T) {
	is := is.New(t)

	start := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	svc := ServiceInfo{NetworkID: 2, TransportStreamID: 1, ServiceID: 100}

	dst := NewDatabase()
	dst.UpdateTOT(&tables.TOT{JSTTime: start.Add(time.Minute)})
	dst.UpdateSection(sampleEIT(100, 1, start, time.Hour), NewSourceID())

	src := NewDatabase()
	src.UpdateTOT(&tables.TOT{JSTTime: start})
	src.UpdateSection(sampleEIT(100, 1, start, 3*time.Hour), NewSourceID())

	// Destination is strictly newer: it must survive even with no
	// preference flag set, since the flag no longer controls whole-
	// event precedence.
	dst.MergeService(src, svc, 0, NewSourceID())
	ev, ok := dst.EventInfo(svc, 1)
	is.True(ok)
	is.Equal(ev.Duration, time.Hour)
}

func TestScheduleTrackerCompleteness(t *testing.T) {
	is := is.New(t)

	var tr ScheduleTracker
	is.True(!tr.HasSchedule(false))

	for sec := uint8(0); sec < 8; sec++ {
		eit := &tables.EIT{
			ID:                       tables.TableIDEITScheduleActualBasicStart,
			SectionNumber:            sec,
			SegmentLastSectionNumber: 7,
			VersionNumber:            1,
		}
		tr.OnSection(eit)
	}

	is.True(tr.HasSchedule(false))
	is.True(tr.IsComplete(1, false)) // hour 1 -> segment 0
	is.True(!tr.IsComplete(4, false)) // hour 4 -> segment 1, not received
}
