package descriptor

import "github.com/tonalfitness/libisdb/arib"

// ShortEventDescriptor (tag 0x4D) carries an event's title and short
// summary text.
type ShortEventDescriptor struct {
	base
	LanguageCode uint32
	EventName    string
	Text         string
}

func decodeShortEvent(content []byte) Descriptor {
	d := &ShortEventDescriptor{}
	d.tag = TagShortEvent
	d.len = uint8(len(content))
	if len(content) < 4 {
		return d
	}
	d.LanguageCode = uint32(content[0])<<16 | uint32(content[1])<<8 | uint32(content[2])
	nameLen := int(content[3])
	pos := 4
	dec := arib.NewDecoder()
	if pos+nameLen > len(content) {
		return d
	}
	d.EventName = dec.Decode(content[pos:pos+nameLen], 0)
	pos += nameLen

	if pos >= len(content) {
		d.valid = true
		return d
	}
	textLen := int(content[pos])
	pos++
	if pos+textLen > len(content) {
		return d
	}
	d.Text = dec.Decode(content[pos:pos+textLen], 0)
	d.valid = true
	return d
}

// ExtendedEventItem is one (description, body) pair within an extended
// event descriptor's item list.
type ExtendedEventItem struct {
	Description string
	Body        string
}

// ExtendedEventDescriptor (tag 0x4E) carries one page of an event's
// extended description, possibly spanning multiple descriptors
// (descriptor_number/last_descriptor_number).
type ExtendedEventDescriptor struct {
	base
	DescriptorNumber     uint8
	LastDescriptorNumber uint8
	LanguageCode         uint32
	Items                []ExtendedEventItem
	ExtendedTextRaw      []byte // raw ARIB bytes, undecoded tail text
}

func decodeExtendedEvent(content []byte) Descriptor {
	d := &ExtendedEventDescriptor{}
	d.tag = TagExtendedEvent
	d.len = uint8(len(content))
	if len(content) < 5 {
		return d
	}
	d.DescriptorNumber = (content[0] >> 4) & 0x0F
	d.LastDescriptorNumber = content[0] & 0x0F
	d.LanguageCode = uint32(content[1])<<16 | uint32(content[2])<<8 | uint32(content[3])
	itemLength := int(content[4])
	pos := 5
	if pos+itemLength > len(content) {
		return d
	}
	end := pos + itemLength
	dec := arib.NewDecoder()
	for pos < end {
		if pos >= len(content) {
			break
		}
		descLen := int(content[pos])
		pos++
		if pos+descLen > len(content) {
			break
		}
		description := dec.Decode(content[pos:pos+descLen], 0)
		pos += descLen

		if pos >= len(content) {
			break
		}
		bodyLen := int(content[pos])
		pos++
		if pos+bodyLen > len(content) {
			break
		}
		body := dec.Decode(content[pos:pos+bodyLen], 0)
		pos += bodyLen

		d.Items = append(d.Items, ExtendedEventItem{Description: description, Body: body})
	}

	if pos < len(content) {
		textLen := int(content[pos])
		pos++
		if pos+textLen <= len(content) {
			d.ExtendedTextRaw = append([]byte(nil), content[pos:pos+textLen]...)
		}
	}

	d.valid = true
	return d
}

// StreamContent/ComponentType "invalid" sentinel values, mirrored from
// EventInfo.hpp's VideoInfo/AudioInfo defaults.
const (
	StreamContentInvalid = 0xFF
	ComponentTypeInvalid = 0xFF
	ComponentTagInvalid  = 0xFF
)

// ComponentDescriptor (tag 0x50) identifies one elementary stream's
// media kind and a short descriptive text (e.g. "multi-angle").
type ComponentDescriptor struct {
	base
	StreamContent uint8
	ComponentType uint8
	ComponentTag  uint8
	LanguageCode  uint32
	Text          string
}

func decodeComponent(content []byte) Descriptor {
	d := &ComponentDescriptor{}
	d.tag = TagComponent
	d.len = uint8(len(content))
	if len(content) < 6 {
		return d
	}
	d.StreamContent = content[0] & 0x0F
	d.ComponentType = content[1]
	d.ComponentTag = content[2]
	d.LanguageCode = uint32(content[3])<<16 | uint32(content[4])<<8 | uint32(content[5])
	d.Text = arib.NewDecoder().Decode(content[6:], 0)
	d.valid = true
	return d
}

// StreamIDDescriptor (tag 0x52) assigns a component_tag to a PMT ES,
// the link used by analyzers/selectors to recognize individual video/
// audio/data streams across PMT updates.
type StreamIDDescriptor struct {
	base
	ComponentTag uint8
}

func decodeStreamID(content []byte) Descriptor {
	d := &StreamIDDescriptor{}
	d.tag = TagStreamID
	d.len = uint8(len(content))
	if len(content) < 1 {
		return d
	}
	d.ComponentTag = content[0]
	d.valid = true
	return d
}

// NibbleInfo is one (content_nibble_level_1, content_nibble_level_2,
// user_nibble) classification triple, per ContentDescriptor::NibbleInfo.
type NibbleInfo struct {
	ContentNibbleLevel1 uint8
	ContentNibbleLevel2 uint8
	UserNibble1         uint8
	UserNibble2         uint8
}

// ContentDescriptor (tag 0x54) classifies an event's genre via up to 7
// nibble-pair entries.
type ContentDescriptor struct {
	base
	Nibbles []NibbleInfo
}

func decodeContent(content []byte) Descriptor {
	d := &ContentDescriptor{}
	d.tag = TagContent
	d.len = uint8(len(content))
	for pos := 0; pos+1 < len(content) && len(d.Nibbles) < 7; pos += 2 {
		d.Nibbles = append(d.Nibbles, NibbleInfo{
			ContentNibbleLevel1: (content[pos] >> 4) & 0x0F,
			ContentNibbleLevel2: content[pos] & 0x0F,
			UserNibble1:         (content[pos+1] >> 4) & 0x0F,
			UserNibble2:         content[pos+1] & 0x0F,
		})
	}
	d.valid = true
	return d
}

// LocalTimeOffsetEntry is one country's offset entry within a
// LocalTimeOffsetDescriptor.
type LocalTimeOffsetEntry struct {
	CountryCode        uint32
	CountryRegionID    uint8
	LocalTimeOffsetPolarity bool
	LocalTimeOffsetMinutes  int
	TimeOfChange       []byte // MJD+BCD, 5 bytes
	NextTimeOffsetMinutes   int
}

// LocalTimeOffsetDescriptor (tag 0x58) carries a regional UTC offset
// table, used for multi-timezone satellite broadcasts.
type LocalTimeOffsetDescriptor struct {
	base
	Entries []LocalTimeOffsetEntry
}

func decodeLocalTimeOffset(content []byte) Descriptor {
	d := &LocalTimeOffsetDescriptor{}
	d.tag = TagLocalTimeOffset
	d.len = uint8(len(content))
	for pos := 0; pos+12 <= len(content); pos += 13 {
		e := LocalTimeOffsetEntry{
			CountryCode:     uint32(content[pos])<<16 | uint32(content[pos+1])<<8 | uint32(content[pos+2]),
			CountryRegionID: (content[pos+3] >> 2) & 0x3F,
			LocalTimeOffsetPolarity: content[pos+3]&0x01 != 0,
		}
		offMin := bcdByte16(content[pos+4:pos+6])
		e.LocalTimeOffsetMinutes = offMin
		e.TimeOfChange = append([]byte(nil), content[pos+6:pos+11]...)
		e.NextTimeOffsetMinutes = bcdByte16(content[pos+11 : pos+13])
		d.Entries = append(d.Entries, e)
	}
	d.valid = true
	return d
}

func bcdByte16(b []byte) int {
	if len(b) < 2 {
		return 0
	}
	hour := int(b[0]>>4)*10 + int(b[0]&0x0F)
	minute := int(b[1]>>4)*10 + int(b[1]&0x0F)
	return hour*60 + minute
}

// Series/event-group related "invalid" sentinels, per EventInfo.hpp.
const (
	ServiceIDInvalid = 0xFFFF
	EventIDInvalid   = 0xFFFF
)

// SeriesDescriptor (tag 0xD5) links an event to a recurring program
// series.
type SeriesDescriptor struct {
	base
	SeriesID         uint16
	RepeatLabel      uint8
	ProgramPattern   uint8
	ExpireDateValidFlag bool
	ExpireDate       []byte // MJD, 2 bytes
	EpisodeNumber    uint16
	LastEpisodeNumber uint16
	SeriesName       string
}

func decodeSeries(content []byte) Descriptor {
	d := &SeriesDescriptor{}
	d.tag = TagSeries
	d.len = uint8(len(content))
	if len(content) < 8 {
		return d
	}
	d.SeriesID = uint16(content[0])<<8 | uint16(content[1])
	d.RepeatLabel = (content[2] >> 4) & 0x0F
	d.ProgramPattern = (content[2] >> 1) & 0x07
	d.ExpireDateValidFlag = content[2]&0x01 != 0
	d.ExpireDate = append([]byte(nil), content[3:5]...)
	d.EpisodeNumber = uint16(content[5])<<4 | uint16(content[6]>>4)
	d.LastEpisodeNumber = uint16(content[6]&0x0F)<<8 | uint16(content[7])
	d.SeriesName = arib.NewDecoder().Decode(content[8:], 0)
	d.valid = true
	return d
}

// EventGroupEvent is one (service_id, event_id) member of a group, or
// (network_id, transport_stream_id, service_id, event_id) when the
// group links events on another network (group types 4 and 5).
type EventGroupEvent struct {
	ServiceID         uint16
	EventID           uint16
	NetworkID         uint16 // only set for group types 4/5
	TransportStreamID uint16 // only set for group types 4/5
}

// Group types used by EventGroupDescriptor, per ARIB STD-B10.
const (
	GroupTypeUndefined      uint8 = 0
	GroupTypeCommonKey      uint8 = 1
	GroupTypeSeries         uint8 = 2
	GroupTypeRelayToOther   uint8 = 3
	GroupTypeMovementFromOther uint8 = 4
	GroupTypeRelayToOtherNetwork uint8 = 5
)

// EventGroupDescriptor (tag 0xD6) links related events (series parts,
// relayed broadcasts, multi-network groups).
type EventGroupDescriptor struct {
	base
	GroupType uint8
	Events    []EventGroupEvent
}

func decodeEventGroup(content []byte) Descriptor {
	d := &EventGroupDescriptor{}
	d.tag = TagEventGroup
	d.len = uint8(len(content))
	if len(content) < 1 {
		return d
	}
	d.GroupType = (content[0] >> 4) & 0x0F
	numEvents := int(content[0] & 0x0F)
	pos := 1
	for i := 0; i < numEvents && pos+3 < len(content); i++ {
		d.Events = append(d.Events, EventGroupEvent{
			ServiceID: uint16(content[pos])<<8 | uint16(content[pos+1]),
			EventID:   uint16(content[pos+2])<<8 | uint16(content[pos+3]),
		})
		pos += 4
	}

	if d.GroupType == GroupTypeMovementFromOther || d.GroupType == GroupTypeRelayToOtherNetwork {
		for pos+7 < len(content) {
			netID := uint16(content[pos])<<8 | uint16(content[pos+1])
			tsID := uint16(content[pos+2])<<8 | uint16(content[pos+3])
			svcID := uint16(content[pos+4])<<8 | uint16(content[pos+5])
			evID := uint16(content[pos+6])<<8 | uint16(content[pos+7])
			d.Events = append(d.Events, EventGroupEvent{
				NetworkID: netID, TransportStreamID: tsID, ServiceID: svcID, EventID: evID,
			})
			pos += 8
		}
	}

	d.valid = true
	return d
}

// EmergencyInformationArea describes one area targeted by an
// emergency broadcast signal within an EmergencyInformationDescriptor.
type EmergencyInformationArea struct {
	AreaCode      uint16
	SignalLevel   uint8
}

// EmergencyInformationDescriptor (tag 0xFC) signals an emergency
// broadcast to receivers (ARIB's EWBS wakeup mechanism).
type EmergencyInformationDescriptor struct {
	base
	ServiceID   uint16
	StartEndFlag bool
	SignalLevel bool
	Areas       []EmergencyInformationArea
}

func decodeEmergencyInformation(content []byte) Descriptor {
	d := &EmergencyInformationDescriptor{}
	d.tag = TagEmergencyInformation
	d.len = uint8(len(content))
	if len(content) < 3 {
		return d
	}
	d.ServiceID = uint16(content[0])<<8 | uint16(content[1])
	d.StartEndFlag = content[2]&0x80 != 0
	d.SignalLevel = content[2]&0x40 != 0
	for pos := 3; pos+2 < len(content); pos += 3 {
		d.Areas = append(d.Areas, EmergencyInformationArea{
			AreaCode:    uint16(content[pos])<<8 | uint16(content[pos+1]),
			SignalLevel: content[pos+2] & 0x01,
		})
	}
	d.valid = true
	return d
}
