package descriptor

import "github.com/tonalfitness/libisdb/arib"

// ServiceDescriptor (tag 0x48) carries a service's type, provider name,
// and service name, found in SDT.
type ServiceDescriptor struct {
	base
	ServiceType  uint8
	ProviderName string
	ServiceName  string
}

func decodeService(content []byte) Descriptor {
	d := &ServiceDescriptor{}
	d.tag = TagService
	d.len = uint8(len(content))
	if len(content) < 2 {
		return d
	}
	d.ServiceType = content[0]
	providerLen := int(content[1])
	pos := 2
	if pos+providerLen > len(content) {
		return d
	}
	dec := arib.NewDecoder()
	d.ProviderName = dec.Decode(content[pos:pos+providerLen], 0)
	pos += providerLen

	if pos >= len(content) {
		d.valid = true
		return d
	}
	serviceLen := int(content[pos])
	pos++
	if pos+serviceLen > len(content) {
		return d
	}
	d.ServiceName = dec.Decode(content[pos:pos+serviceLen], 0)
	d.valid = true
	return d
}

// LinkageDescriptor (tag 0x4A) points to a related service, optionally
// carrying private data (e.g. data-broadcast linkage).
type LinkageDescriptor struct {
	base
	TransportStreamID uint16
	OriginalNetworkID uint16
	ServiceID         uint16
	LinkageType       uint8
	PrivateData       []byte
}

func decodeLinkage(content []byte) Descriptor {
	d := &LinkageDescriptor{}
	d.tag = TagLinkage
	d.len = uint8(len(content))
	if len(content) < 7 {
		return d
	}
	d.TransportStreamID = uint16(content[0])<<8 | uint16(content[1])
	d.OriginalNetworkID = uint16(content[2])<<8 | uint16(content[3])
	d.ServiceID = uint16(content[4])<<8 | uint16(content[5])
	d.LinkageType = content[6]
	d.PrivateData = append([]byte(nil), content[7:]...)
	d.valid = true
	return d
}

// LDTLinkageDescriptor (tag 0xDC) links a service to a Linked
// Description Table carrying its data-broadcast content.
type LDTLinkageDescriptor struct {
	base
	OriginalServiceID uint16
	TransportStreamID uint16
	OriginalNetworkID uint16
	Descriptions      []LDTLinkageDescription
}

// LDTLinkageDescription is one (description_id, description_type)
// entry.
type LDTLinkageDescription struct {
	DescriptionID   uint16
	DescriptionType uint8
	UserDefined     uint8
}

func decodeLDTLinkage(content []byte) Descriptor {
	d := &LDTLinkageDescriptor{}
	d.tag = TagLDTLinkage
	d.len = uint8(len(content))
	if len(content) < 6 {
		return d
	}
	d.OriginalServiceID = uint16(content[0])<<8 | uint16(content[1])
	d.TransportStreamID = uint16(content[2])<<8 | uint16(content[3])
	d.OriginalNetworkID = uint16(content[4])<<8 | uint16(content[5])
	for pos := 6; pos+2 < len(content); pos += 3 {
		d.Descriptions = append(d.Descriptions, LDTLinkageDescription{
			DescriptionID:   uint16(content[pos])<<8 | uint16(content[pos+1])&0xF0>>4,
			DescriptionType: content[pos+1] & 0x0F,
			UserDefined:     content[pos+2],
		})
	}
	d.valid = true
	return d
}

// BroadcasterNameDescriptor (tag 0xD8) carries the broadcaster's name
// for use in the EIT/NIT broadcaster_name_descriptor convention.
type BroadcasterNameDescriptor struct {
	base
	Name string
}

func decodeBroadcasterName(content []byte) Descriptor {
	d := &BroadcasterNameDescriptor{}
	d.tag = TagBroadcasterName
	d.len = uint8(len(content))
	d.Name = arib.NewDecoder().Decode(content, 0)
	d.valid = true
	return d
}

// ExtendedBroadcasterDescriptor (tag 0xCE) carries broadcaster
// grouping info, distinguishing terrestrial broadcasters from
// satellite/cable affiliates.
type ExtendedBroadcasterDescriptor struct {
	base
	BroadcasterType     uint8
	TerrestrialBroadcasterID uint16
	AffiliationIDs      []uint8
	BroadcasterIDs      []uint8
	PrivateData         []byte
}

func decodeExtendedBroadcaster(content []byte) Descriptor {
	d := &ExtendedBroadcasterDescriptor{}
	d.tag = TagExtendedBroadcaster
	d.len = uint8(len(content))
	if len(content) < 1 {
		return d
	}
	d.BroadcasterType = (content[0] >> 4) & 0x0F
	pos := 1
	if d.BroadcasterType == 0x1 {
		if pos+3 > len(content) {
			return d
		}
		d.TerrestrialBroadcasterID = uint16(content[pos])<<8 | uint16(content[pos+1])
		numAffiliations := int(content[pos+2] >> 4)
		pos += 3
		for i := 0; i < numAffiliations && pos < len(content); i++ {
			d.AffiliationIDs = append(d.AffiliationIDs, content[pos])
			pos++
		}
		for pos+1 < len(content) {
			d.BroadcasterIDs = append(d.BroadcasterIDs, content[pos], content[pos+1])
			pos += 2
		}
	} else {
		d.PrivateData = append([]byte(nil), content[pos:]...)
	}
	d.valid = true
	return d
}

// LogoTransmissionDescriptor (tag 0xCF) identifies the channel logo
// delivered via data carousel or CDT for a service.
type LogoTransmissionDescriptor struct {
	base
	LogoTransmissionType uint8
	LogoID               uint16
	LogoVersion          uint16
	DownloadDataID       uint16
}

func decodeLogoTransmission(content []byte) Descriptor {
	d := &LogoTransmissionDescriptor{}
	d.tag = TagLogoTransmission
	d.len = uint8(len(content))
	if len(content) < 1 {
		return d
	}
	d.LogoTransmissionType = content[0]
	switch d.LogoTransmissionType {
	case 0x01:
		if len(content) < 7 {
			return d
		}
		d.LogoID = uint16(content[1]&0x1F)<<8 | uint16(content[2])
		d.LogoVersion = uint16(content[3]&0x0F)<<8 | uint16(content[4])
		d.DownloadDataID = uint16(content[5])<<8 | uint16(content[6])
	case 0x02:
		if len(content) < 3 {
			return d
		}
		d.LogoID = uint16(content[1]&0x1F)<<8 | uint16(content[2])
	}
	d.valid = true
	return d
}

// ComponentGroupEntry describes one CA unit's component tags within a
// ComponentGroupDescriptor.
type ComponentGroupEntry struct {
	ComponentTags []uint8
	TotalBitRate  uint8
	Text          string
}

// ComponentGroupDescriptor (tag 0xD9) groups elementary streams for
// multi-view services (e.g. multi-angle broadcasts).
type ComponentGroupDescriptor struct {
	base
	ComponentGroupType uint8
	Groups             []ComponentGroupEntry
}

func decodeComponentGroup(content []byte) Descriptor {
	d := &ComponentGroupDescriptor{}
	d.tag = TagComponentGroup
	d.len = uint8(len(content))
	if len(content) < 1 {
		return d
	}
	d.ComponentGroupType = (content[0] >> 5) & 0x07
	numGroups := int(content[0] & 0x0F)
	pos := 1
	dec := arib.NewDecoder()
	for i := 0; i < numGroups && pos < len(content); i++ {
		entry := ComponentGroupEntry{}
		numComponents := int(content[pos] >> 4)
		totalBitRateFlag := content[pos]&0x08 != 0
		pos++
		for c := 0; c < numComponents && pos < len(content); c++ {
			entry.ComponentTags = append(entry.ComponentTags, content[pos])
			pos++
		}
		if totalBitRateFlag {
			if pos >= len(content) {
				break
			}
			entry.TotalBitRate = content[pos]
			pos++
		}
		if pos >= len(content) {
			break
		}
		textLen := int(content[pos])
		pos++
		if pos+textLen > len(content) {
			break
		}
		entry.Text = dec.Decode(content[pos:pos+textLen], 0)
		pos += textLen
		d.Groups = append(d.Groups, entry)
	}
	d.valid = true
	return d
}

// HyperLinkDescriptor (tag 0xC5) carries a data-broadcast hyperlink
// target.
type HyperLinkDescriptor struct {
	base
	HyperLinkageType uint8
	LinkDestinationType uint8
	SelectorLength   uint8
	Selector         []byte
	PrivateData      []byte
}

func decodeHyperLink(content []byte) Descriptor {
	d := &HyperLinkDescriptor{}
	d.tag = TagHyperLink
	d.len = uint8(len(content))
	if len(content) < 3 {
		return d
	}
	d.HyperLinkageType = content[0]
	d.LinkDestinationType = content[1]
	d.SelectorLength = content[2]
	pos := 3
	if pos+int(d.SelectorLength) > len(content) {
		return d
	}
	d.Selector = append([]byte(nil), content[pos:pos+int(d.SelectorLength)]...)
	pos += int(d.SelectorLength)
	d.PrivateData = append([]byte(nil), content[pos:]...)
	d.valid = true
	return d
}

// TargetRegionDescriptor (tag 0xC6) restricts a service/event to a
// geographic prefecture set (ARIB's regional broadcasting support).
type TargetRegionDescriptor struct {
	base
	RegionSpecType uint8
	PrefectureBitmap uint64 // 47 prefecture bits, bit i = prefecture i+1
}

func decodeTargetRegion(content []byte) Descriptor {
	d := &TargetRegionDescriptor{}
	d.tag = TagTargetRegion
	d.len = uint8(len(content))
	if len(content) < 1 {
		return d
	}
	d.RegionSpecType = content[0]
	if d.RegionSpecType == 0x01 {
		for i := 0; i < 56 && 1+i/8 < len(content); i++ {
			if content[1+i/8]&(0x80>>uint(i%8)) != 0 {
				d.PrefectureBitmap |= 1 << uint(i)
			}
		}
	}
	d.valid = true
	return d
}
