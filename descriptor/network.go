package descriptor

import "github.com/tonalfitness/libisdb/arib"

// NetworkNameDescriptor (tag 0x40) carries the human-readable network
// name, found in NIT.
type NetworkNameDescriptor struct {
	base
	Name string
}

func decodeNetworkName(content []byte) Descriptor {
	d := &NetworkNameDescriptor{}
	d.tag = TagNetworkName
	d.len = uint8(len(content))
	d.Name = arib.NewDecoder().Decode(content, 0)
	d.valid = true
	return d
}

// ServiceListEntry is one (service_id, service_type) pair in a
// ServiceListDescriptor.
type ServiceListEntry struct {
	ServiceID   uint16
	ServiceType uint8
}

// ServiceListDescriptor (tag 0x41) enumerates the services carried by
// a transport stream, found in NIT.
type ServiceListDescriptor struct {
	base
	Services []ServiceListEntry
}

func decodeServiceList(content []byte) Descriptor {
	d := &ServiceListDescriptor{}
	d.tag = TagServiceList
	d.len = uint8(len(content))
	for pos := 0; pos+2 < len(content); pos += 3 {
		d.Services = append(d.Services, ServiceListEntry{
			ServiceID:   uint16(content[pos])<<8 | uint16(content[pos+1]),
			ServiceType: content[pos+2],
		})
	}
	d.valid = true
	return d
}

// SatelliteDeliverySystemDescriptor (tag 0x43) carries BS/CS tuning
// parameters.
type SatelliteDeliverySystemDescriptor struct {
	base
	FrequencyGHz      float64
	OrbitalPositionDeg float64
	WestEastFlag      bool
	Polarization      uint8
	Modulation        uint8
	SymbolRateMSps    float64
	FECInner          uint8
}

func decodeSatelliteDeliverySystem(content []byte) Descriptor {
	d := &SatelliteDeliverySystemDescriptor{}
	d.tag = TagSatelliteDeliverySystem
	d.len = uint8(len(content))
	if len(content) < 11 {
		return d
	}
	d.FrequencyGHz = bcdFraction(content[0:4], 8) / 100000.0
	d.OrbitalPositionDeg = bcdFraction(content[4:6], 3) / 10.0
	d.WestEastFlag = content[6]&0x80 != 0
	d.Polarization = (content[6] >> 5) & 0x03
	d.Modulation = content[6] & 0x1F
	d.SymbolRateMSps = bcdFraction(content[7:11], 7) / 10000.0
	d.FECInner = content[10] & 0x0F
	d.valid = true
	return d
}

// TerrestrialDeliverySystemDescriptor (tag 0xFA) carries ISDB-T tuning
// parameters.
type TerrestrialDeliverySystemDescriptor struct {
	base
	AreaCode       uint16
	GuardInterval  uint8
	TransmissionMode uint8
	FrequenciesMHz []float64
}

func decodeTerrestrialDeliverySystem(content []byte) Descriptor {
	d := &TerrestrialDeliverySystemDescriptor{}
	d.tag = TagTerrestrialDeliverySystem
	d.len = uint8(len(content))
	if len(content) < 2 {
		return d
	}
	d.AreaCode = uint16(content[0])<<8 | uint16(content[1])
	d.AreaCode >>= 4
	d.GuardInterval = (content[1] >> 2) & 0x03
	d.TransmissionMode = content[1] & 0x03
	for pos := 2; pos+1 < len(content); pos += 2 {
		freq := uint16(content[pos])<<8 | uint16(content[pos+1])
		d.FrequenciesMHz = append(d.FrequenciesMHz, float64(freq)/7.0)
	}
	d.valid = true
	return d
}

// PartialReceptionDescriptor (tag 0xFB) lists the one-seg service ids
// carried in a transport stream; its presence in NIT is what the
// one-segment PAT synthesizer watches for.
type PartialReceptionDescriptor struct {
	base
	ServiceIDs []uint16
}

func decodePartialReception(content []byte) Descriptor {
	d := &PartialReceptionDescriptor{}
	d.tag = TagPartialReception
	d.len = uint8(len(content))
	for pos := 0; pos+1 < len(content); pos += 2 {
		d.ServiceIDs = append(d.ServiceIDs, uint16(content[pos])<<8|uint16(content[pos+1]))
	}
	d.valid = true
	return d
}

// SIParameterDescriptor (tag 0xD7) lists the table types and their
// repetition rates carried by a service, including the CDT/SDTT table
// ids this module supplements (SPEC_FULL.md §C).
type SIParameterDescriptor struct {
	base
	ParameterVersion uint8
	UpdateTime       []byte // MJD, 2 bytes
	Entries          []SITableEntry
}

// SITableEntry pairs a table_id with its undecoded table_description
// bytes.
type SITableEntry struct {
	TableID      uint8
	TableDescriptionLength uint8
	Content      []byte
}

// Well-known table ids referenced by SIParameterDescriptor.
const (
	TableIDCDT  uint8 = 0xC8
	TableIDSDTT uint8 = 0xC3
)

func decodeSIParameter(content []byte) Descriptor {
	d := &SIParameterDescriptor{}
	d.tag = TagSIParameter
	d.len = uint8(len(content))
	if len(content) < 3 {
		return d
	}
	d.ParameterVersion = content[0]
	d.UpdateTime = append([]byte(nil), content[1:3]...)

	pos := 3
	for pos+2 <= len(content) {
		tableID := content[pos]
		descLen := content[pos+1]
		pos += 2
		if pos+int(descLen) > len(content) {
			break
		}
		d.Entries = append(d.Entries, SITableEntry{
			TableID:                tableID,
			TableDescriptionLength: descLen,
			Content:                append([]byte(nil), content[pos:pos+int(descLen)]...),
		})
		pos += int(descLen)
	}
	d.valid = true
	return d
}

// TSInformationDescriptor (tag 0xCD) carries the remote-control key id
// and TS name for a transport stream, found in NIT.
type TSInformationDescriptor struct {
	base
	RemoteControlKeyID uint8
	TSName             string
	TransmissionTypes  []TSInformationTransmissionType
}

// TSInformationTransmissionType lists the service ids sharing one
// transmission type within a TS.
type TSInformationTransmissionType struct {
	TransmissionTypeInfo uint8
	ServiceIDs           []uint16
}

func decodeTSInformation(content []byte) Descriptor {
	d := &TSInformationDescriptor{}
	d.tag = TagTSInformation
	d.len = uint8(len(content))
	if len(content) < 2 {
		return d
	}
	d.RemoteControlKeyID = content[0]
	nameLen := int(content[1] >> 2)
	pos := 2
	if pos+nameLen > len(content) {
		return d
	}
	d.TSName = arib.NewDecoder().Decode(content[pos:pos+nameLen], 0)
	pos += nameLen

	for pos+2 <= len(content) {
		typeInfo := content[pos]
		numServices := int(content[pos+1])
		pos += 2
		tt := TSInformationTransmissionType{TransmissionTypeInfo: typeInfo}
		for i := 0; i < numServices && pos+1 < len(content); i++ {
			tt.ServiceIDs = append(tt.ServiceIDs, uint16(content[pos])<<8|uint16(content[pos+1]))
			pos += 2
		}
		d.TransmissionTypes = append(d.TransmissionTypes, tt)
	}
	d.valid = true
	return d
}

// SystemManagementDescriptor (tag 0xFE) carries the ARIB broadcasting
// system classification (terrestrial, BS, CS, etc).
type SystemManagementDescriptor struct {
	base
	BroadcastingFlag       uint8
	BroadcastingIdentifier uint8
	AdditionalBroadcastingIdentification uint8
	AdditionalIdentificationInfo []byte
}

func decodeSystemManagement(content []byte) Descriptor {
	d := &SystemManagementDescriptor{}
	d.tag = TagSystemManagement
	d.len = uint8(len(content))
	if len(content) < 2 {
		return d
	}
	d.BroadcastingFlag = (content[0] >> 6) & 0x03
	d.BroadcastingIdentifier = content[0] & 0x3F
	d.AdditionalBroadcastingIdentification = content[1]
	d.AdditionalIdentificationInfo = append([]byte(nil), content[2:]...)
	d.valid = true
	return d
}

// bcdFraction decodes n BCD digits (packed 2 per byte, using ceil(n/2)
// bytes) into a float, most significant digit first.
func bcdFraction(b []byte, digits int) float64 {
	val := 0.0
	digit := 0
	for _, by := range b {
		for _, nibble := range [2]byte{by >> 4, by & 0x0F} {
			if digit >= digits {
				break
			}
			val = val*10 + float64(nibble)
			digit++
		}
	}
	return val
}
