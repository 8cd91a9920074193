package epg

import "time"

// discardOldEventsGrace is how far before the anchor TOT an event's end
// time must fall before DiscardOldEvents drops it: spec.md §4.9 keeps a
// 4-hour trailing window rather than discarding the instant an event
// ends, so a just-finished program is still reachable for a while.
const discardOldEventsGrace = 4 * time.Hour

// Merge folds every service in src into db, service by service.
func (db *Database) Merge(src *Database, flags MergeFlag, sourceID SourceID) {
	for _, svc := range src.ServiceList() {
		db.MergeService(src, svc, flags, sourceID)
	}
}

// MergeService folds one service's events from src into db. It
// returns true if anything in db changed as a result.
func (db *Database) MergeService(src *Database, svc ServiceInfo, flags MergeFlag, sourceID SourceID) bool {
	src.mu.RLock()
	srcSE, ok := src.services[svc.Key()]
	var srcEvents []*EventInfo
	if ok {
		srcEvents = make([]*EventInfo, 0, len(srcSE.events))
		for _, e := range srcSE.events {
			srcEvents = append(srcEvents, e)
		}
	}
	src.mu.RUnlock()

	if !ok {
		return false
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	se := db.serviceFor(svc)
	now := db.curTOTTime
	changed := false

	if flags.has(DiscardOldEvents) && !now.IsZero() {
		anchor := now.Add(-discardOldEventsGrace)
		for id, e := range se.events {
			if e.EndTime().Before(anchor) {
				delete(se.events, id)
				changed = true
			}
		}
	}

	for _, srcEvent := range srcEvents {
		if flags.has(DiscardEndedEvents) && !now.IsZero() && srcEvent.EndTime().Before(now) {
			continue
		}

		existing, had := se.events[srcEvent.EventID]
		if !had {
			cp := *srcEvent
			cp.SourceID = sourceID
			se.events[srcEvent.EventID] = &cp
			changed = true
			continue
		}

		// The entry with the newer UpdatedTime wins outright. Only when
		// both sides were updated at the same time does
		// PreferDatabaseEntries get a say: it keeps the destination's
		// event, otherwise the source's replaces it. MergeBasicExtended
		// only fills in the surviving event's extended text from the
		// other side when the survivor has none.
		switch {
		case srcEvent.UpdatedTime.After(existing.UpdatedTime):
			merged := *srcEvent
			merged.SourceID = sourceID
			if flags.has(MergeBasicExtended) && len(merged.ExtendedItems) == 0 {
				merged.ExtendedItems = existing.ExtendedItems
			}
			se.events[srcEvent.EventID] = &merged
			changed = true

		case existing.UpdatedTime.After(srcEvent.UpdatedTime):
			if flags.has(MergeBasicExtended) && len(existing.ExtendedItems) == 0 && len(srcEvent.ExtendedItems) > 0 {
				existing.ExtendedItems = srcEvent.ExtendedItems
				changed = true
			}

		case flags.has(PreferDatabaseEntries):
			if flags.has(MergeBasicExtended) && len(existing.ExtendedItems) == 0 && len(srcEvent.ExtendedItems) > 0 {
				existing.ExtendedItems = srcEvent.ExtendedItems
				changed = true
			}

		default:
			merged := *srcEvent
			merged.SourceID = sourceID
			if flags.has(MergeBasicExtended) && len(merged.ExtendedItems) == 0 {
				merged.ExtendedItems = existing.ExtendedItems
			}
			se.events[srcEvent.EventID] = &merged
			changed = true
		}
	}

	if changed || flags.has(SetServiceUpdated) {
		se.isUpdated = true
	}

	return changed
}
