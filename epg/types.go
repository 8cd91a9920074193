// Package epg is the EPG (Electronic Program Guide) database: a
// per-service store of events built from EIT present/following and
// schedule sections, merged across sources and anchored to wall-clock
// time via TOT, grounded on
// original_source/LibISDB/EPG/EPGDatabase.{hpp,cpp}.
package epg

import (
	"time"

	"github.com/google/uuid"

	"github.com/tonalfitness/libisdb/descriptor"
	"github.com/tonalfitness/libisdb/tables"
)

// Invalid sentinels, mirrored from EventInfo.hpp's defaults.
const (
	NetworkIDInvalid           uint16 = 0xFFFF
	TransportStreamIDInvalid   uint16 = 0xFFFF
	ServiceIDInvalid           uint16 = 0xFFFF
	EventIDInvalid             uint16 = 0xFFFF
)

// SourceID records which upstream tuner/source contributed an event
// (e.g. one of two tuners on the same transponder). Merge stamps the
// events it writes with the caller's SourceID; it does not compare
// SourceIDs when resolving conflicts, which are decided by UpdatedTime
// and the MergeFlags.
type SourceID uuid.UUID

// NewSourceID returns a fresh, randomly generated source identifier.
func NewSourceID() SourceID {
	return SourceID(uuid.New())
}

// ServiceInfo identifies one broadcast service.
type ServiceInfo struct {
	NetworkID         uint16
	TransportStreamID uint16
	ServiceID         uint16
}

// Key returns the packed identifier spec.md §4.4 and the original's
// ServiceInfo::GetKey both use for ordering/lookup.
func (s ServiceInfo) Key() uint64 {
	return uint64(s.NetworkID)<<32 | uint64(s.TransportStreamID)<<16 | uint64(s.ServiceID)
}

// ComponentInfo summarizes one elementary stream's media kind, taken
// from an event's ComponentDescriptor.
type ComponentInfo struct {
	StreamContent uint8
	ComponentType uint8
	ComponentTag  uint8
	Text          string
}

// EventInfo is one program entry in the database: a decoded EIT event
// plus the metadata accumulated from its descriptors.
type EventInfo struct {
	NetworkID         uint16
	TransportStreamID uint16
	ServiceID         uint16
	EventID           uint16

	StartTime     time.Time
	Duration      time.Duration
	RunningStatus uint8
	FreeCAMode    bool

	EventName string
	EventText string

	// ExtendedItems holds every (description, body) pair gathered
	// across all of an event's ExtendedEventDescriptor pages, merged
	// in descriptor_number order.
	ExtendedItems []descriptor.ExtendedEventItem

	Nibbles    []descriptor.NibbleInfo
	Components []ComponentInfo

	// IsCommonEvent marks an event carried by EIT present/following
	// rather than schedule, per SetCommonEventInfo's role in the
	// original: a p/f event is authoritative over the corresponding
	// schedule entry for the same EventID when both are known.
	IsCommonEvent bool

	SourceID    SourceID
	UpdatedTime time.Time
}

// Service identifies which ServiceInfo an event belongs to.
func (e *EventInfo) Service() ServiceInfo {
	return ServiceInfo{NetworkID: e.NetworkID, TransportStreamID: e.TransportStreamID, ServiceID: e.ServiceID}
}

// EndTime returns the event's scheduled end, StartTime+Duration.
func (e *EventInfo) EndTime() time.Time {
	return e.StartTime.Add(e.Duration)
}

// eventFromEIT builds an EventInfo for one EIT event entry, decoding
// its descriptor block into the flattened fields above.
func eventFromEIT(t *tables.EIT, ev *tables.EITEvent) *EventInfo {
	info := &EventInfo{
		NetworkID:         t.OriginalNetworkID,
		TransportStreamID: t.TransportStreamID,
		ServiceID:         t.ServiceID,
		EventID:           ev.EventID,
		StartTime:         ev.StartTime,
		Duration:          ev.Duration,
		RunningStatus:     ev.RunningStatus,
		FreeCAMode:        ev.FreeCAMode,
		IsCommonEvent:     t.IsPresentFollowing(),
	}

	if ev.Descriptors == nil {
		return info
	}

	if d, ok := ev.Descriptors.ByTag(descriptor.TagShortEvent).(*descriptor.ShortEventDescriptor); ok {
		info.EventName = d.EventName
		info.EventText = d.Text
	}

	for _, d := range ev.Descriptors.AllByTag(descriptor.TagExtendedEvent) {
		if ext, ok := d.(*descriptor.ExtendedEventDescriptor); ok {
			info.ExtendedItems = append(info.ExtendedItems, ext.Items...)
		}
	}

	if d, ok := ev.Descriptors.ByTag(descriptor.TagContent).(*descriptor.ContentDescriptor); ok {
		info.Nibbles = d.Nibbles
	}

	for _, d := range ev.Descriptors.AllByTag(descriptor.TagComponent) {
		if c, ok := d.(*descriptor.ComponentDescriptor); ok {
			info.Components = append(info.Components, ComponentInfo{
				StreamContent: c.StreamContent,
				ComponentType: c.ComponentType,
				ComponentTag:  c.ComponentTag,
				Text:          c.Text,
			})
		}
	}

	return info
}
