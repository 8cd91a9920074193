package epg

import (
	"sort"
	"sync"
	"time"

	"github.com/tonalfitness/libisdb/tables"
)

// MergeFlag selects Merge's conflict-resolution behavior, mirroring
// EPGDatabase::MergeFlag.
type MergeFlag uint

const (
	// DiscardOldEvents drops events from the destination whose end
	// time falls more than four hours before the database's current
	// TOT anchor, before merging in the source's events.
	DiscardOldEvents MergeFlag = 1 << iota
	// DiscardEndedEvents additionally drops events from the source
	// being merged in if they have already ended.
	DiscardEndedEvents
	// PreferDatabaseEntries keeps the destination's existing event
	// when both sides carry the same UpdatedTime, instead of
	// overwriting it with the source's. When the UpdatedTimes differ,
	// the newer event wins regardless of this flag.
	PreferDatabaseEntries
	// MergeBasicExtended merges extended-event text from a
	// basic-bank-only source into an existing event that so far only
	// has present/following or basic data, instead of requiring an
	// exact schedule-bank match.
	MergeBasicExtended
	// SetServiceUpdated marks the destination service as updated
	// (IsServiceUpdated) even when the merge made no visible change,
	// so listeners relying on that flag still get a chance to react.
	SetServiceUpdated
)

func (f MergeFlag) has(flag MergeFlag) bool { return f&flag != 0 }

// Listener receives database change notifications, mirroring
// EPGDatabase::EventListener.
type Listener interface {
	OnServiceCompleted(db *Database, service ServiceInfo, isExtended bool)
	OnScheduleStatusReset(db *Database, service ServiceInfo)
}

type serviceEvents struct {
	events     map[uint16]*EventInfo // keyed by EventID
	isUpdated  bool
	schedule   ScheduleTracker
	updatedAt  time.Time
}

func newServiceEvents() *serviceEvents {
	return &serviceEvents{events: make(map[uint16]*EventInfo)}
}

// Database is an EPG event store for any number of services, built
// from EIT sections and anchored to wall-clock time via TOT.
type Database struct {
	mu sync.RWMutex

	services map[uint64]*serviceEvents
	info     map[uint64]ServiceInfo

	curTOTTime time.Time
	noPastEvents bool

	listeners []Listener
}

// NewDatabase returns an empty Database.
func NewDatabase() *Database {
	return &Database{
		services: make(map[uint64]*serviceEvents),
		info:     make(map[uint64]ServiceInfo),
	}
}

// Clear removes every service and event.
func (db *Database) Clear() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.services = make(map[uint64]*serviceEvents)
	db.info = make(map[uint64]ServiceInfo)
}

// SetNoPastEvents controls whether UpdateSection silently drops
// events that have already ended relative to the current TOT anchor.
func (db *Database) SetNoPastEvents(v bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.noPastEvents = v
}

// AddListener registers a Listener for future notifications.
func (db *Database) AddListener(l Listener) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.listeners = append(db.listeners, l)
}

func (db *Database) notifyScheduleReset(svc ServiceInfo) {
	for _, l := range db.listeners {
		l.OnScheduleStatusReset(db, svc)
	}
}

func (db *Database) notifyServiceCompleted(svc ServiceInfo, extended bool) {
	for _, l := range db.listeners {
		l.OnServiceCompleted(db, svc, extended)
	}
}

// ServiceList returns every service currently tracked.
func (db *Database) ServiceList() []ServiceInfo {
	db.mu.RLock()
	defer db.mu.RUnlock()
	list := make([]ServiceInfo, 0, len(db.info))
	for _, s := range db.info {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key() < list[j].Key() })
	return list
}

func (db *Database) serviceFor(svc ServiceInfo) *serviceEvents {
	key := svc.Key()
	se, ok := db.services[key]
	if !ok {
		se = newServiceEvents()
		db.services[key] = se
		db.info[key] = svc
	}
	return se
}

// IsServiceUpdated reports whether svc has unconsumed updates.
func (db *Database) IsServiceUpdated(svc ServiceInfo) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	se, ok := db.services[svc.Key()]
	return ok && se.isUpdated
}

// ResetServiceUpdated clears svc's updated flag.
func (db *Database) ResetServiceUpdated(svc ServiceInfo) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if se, ok := db.services[svc.Key()]; ok {
		se.isUpdated = false
	}
}

// EventList returns every known event for svc, unsorted.
func (db *Database) EventList(svc ServiceInfo) []*EventInfo {
	db.mu.RLock()
	defer db.mu.RUnlock()
	se, ok := db.services[svc.Key()]
	if !ok {
		return nil
	}
	out := make([]*EventInfo, 0, len(se.events))
	for _, e := range se.events {
		out = append(out, e)
	}
	return out
}

// EventListSortedByTime returns svc's events ordered by StartTime.
func (db *Database) EventListSortedByTime(svc ServiceInfo) []*EventInfo {
	list := db.EventList(svc)
	sort.Slice(list, func(i, j int) bool { return list[i].StartTime.Before(list[j].StartTime) })
	return list
}

// EventInfo looks up one event by (svc, eventID).
func (db *Database) EventInfo(svc ServiceInfo, eventID uint16) (*EventInfo, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	se, ok := db.services[svc.Key()]
	if !ok {
		return nil, false
	}
	e, ok := se.events[eventID]
	return e, ok
}

// EventAt returns the event covering the given instant, if any.
func (db *Database) EventAt(svc ServiceInfo, at time.Time) (*EventInfo, bool) {
	for _, e := range db.EventList(svc) {
		if !at.Before(e.StartTime) && at.Before(e.EndTime()) {
			return e, true
		}
	}
	return nil, false
}

// IsScheduleComplete reports whether the schedule bank (Basic if
// extended is false, Extended otherwise) is fully known for every
// 3-hour segment up to and including the one covering hour.
func (db *Database) IsScheduleComplete(svc ServiceInfo, hour int, extended bool) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	se, ok := db.services[svc.Key()]
	if !ok {
		return false
	}
	return se.schedule.IsComplete(hour, extended)
}

// HasSchedule reports whether any schedule data is known for svc's
// given bank.
func (db *Database) HasSchedule(svc ServiceInfo, extended bool) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	se, ok := db.services[svc.Key()]
	if !ok {
		return false
	}
	return se.schedule.HasSchedule(extended)
}

// ResetScheduleStatus clears every service's schedule-completeness
// tracking, e.g. after a channel retune where stale segment state
// would otherwise misreport completeness.
func (db *Database) ResetScheduleStatus() {
	db.mu.Lock()
	defer db.mu.Unlock()
	for key, se := range db.services {
		se.schedule.Reset()
		db.notifyScheduleReset(db.info[key])
	}
}

// UpdateTOT feeds a decoded TOT, anchoring the database's notion of
// "now" for DiscardOldEvents/DiscardEndedEvents/NoPastEvents
// filtering. Between TOT arrivals (nominally every 5 seconds on ARIB
// broadcasts, bounded to roughly 15 seconds of drift per spec.md §4.6)
// callers needing finer resolution should interpolate using the
// stream's own PCR rather than calling UpdateTOT more often than the
// table actually arrives.
func (db *Database) UpdateTOT(t *tables.TOT) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.curTOTTime = t.JSTTime
}

// CurrentTime returns the database's current TOT-anchored wall-clock
// time, or the zero time if no TOT has been seen yet.
func (db *Database) CurrentTime() time.Time {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.curTOTTime
}

// UpdateSection feeds one decoded, CRC-verified EIT section into the
// database for source sourceID, adding or refreshing its events and
// (for actual-stream schedule sections) updating completeness
// tracking.
func (db *Database) UpdateSection(t *tables.EIT, sourceID SourceID) {
	if len(t.Events) == 0 && !(t.IsActual() && !t.IsPresentFollowing()) {
		return
	}

	svc := ServiceInfo{NetworkID: t.OriginalNetworkID, TransportStreamID: t.TransportStreamID, ServiceID: t.ServiceID}

	db.mu.Lock()
	defer db.mu.Unlock()

	se := db.serviceFor(svc)
	now := db.curTOTTime

	for _, ev := range t.Events {
		if db.noPastEvents && !now.IsZero() {
			end := ev.StartTime.Add(ev.Duration)
			if end.Before(now) {
				continue
			}
		}

		info := eventFromEIT(t, &ev)
		info.SourceID = sourceID
		info.UpdatedTime = now

		existing, had := se.events[info.EventID]
		if had && existing.IsCommonEvent && !info.IsCommonEvent {
			// A present/following event is authoritative over a
			// schedule entry for the same id: keep the p/f text but
			// accept the schedule event's extended items if it has
			// ones the p/f entry lacks.
			if len(existing.ExtendedItems) == 0 {
				existing.ExtendedItems = info.ExtendedItems
			}
			continue
		}

		se.events[info.EventID] = info
	}

	se.isUpdated = true
	se.updatedAt = now

	if t.IsActual() && !t.IsPresentFollowing() {
		se.schedule.OnSection(t)
		if se.schedule.IsComplete(now.Hour(), t.IsExtended()) {
			db.notifyServiceCompleted(svc, t.IsExtended())
		}
	}
}
