package descriptor

// Tag constants, per ARIB STD-B10 and original_source/LibISDB/TS/Descriptors.hpp.
const (
	TagCA                         uint8 = 0x09
	TagNetworkName                uint8 = 0x40
	TagServiceList                uint8 = 0x41
	TagSatelliteDeliverySystem    uint8 = 0x43
	TagService                    uint8 = 0x48
	TagLinkage                    uint8 = 0x4A
	TagShortEvent                 uint8 = 0x4D
	TagExtendedEvent              uint8 = 0x4E
	TagComponent                  uint8 = 0x50
	TagStreamID                   uint8 = 0x52
	TagContent                    uint8 = 0x54
	TagLocalTimeOffset            uint8 = 0x58
	TagHierarchicalTransmission   uint8 = 0xC0
	TagDigitalCopyControl         uint8 = 0xC1
	TagAudioComponent             uint8 = 0xC4
	TagHyperLink                  uint8 = 0xC5
	TagTargetRegion               uint8 = 0xC6
	TagVideoDecodeControl         uint8 = 0xC8
	TagDownloadContent            uint8 = 0xC9
	TagCAEMMTS                    uint8 = 0xCA
	TagCAContractInfo             uint8 = 0xCB
	TagCAService                  uint8 = 0xCC
	TagTSInformation              uint8 = 0xCD
	TagExtendedBroadcaster        uint8 = 0xCE
	TagLogoTransmission           uint8 = 0xCF
	TagSeries                     uint8 = 0xD5
	TagEventGroup                 uint8 = 0xD6
	TagSIParameter                uint8 = 0xD7
	TagBroadcasterName            uint8 = 0xD8
	TagComponentGroup             uint8 = 0xD9
	TagLDTLinkage                 uint8 = 0xDC
	TagAccessControl              uint8 = 0xF6
	TagTerrestrialDeliverySystem  uint8 = 0xFA
	TagPartialReception           uint8 = 0xFB
	TagEmergencyInformation       uint8 = 0xFC
	TagDataComponent              uint8 = 0xFD
	TagSystemManagement           uint8 = 0xFE
)

type decodeFunc func(content []byte) Descriptor

var registry = map[uint8]decodeFunc{
	TagCA:                        decodeCA,
	TagNetworkName:                decodeNetworkName,
	TagServiceList:                decodeServiceList,
	TagSatelliteDeliverySystem:    decodeSatelliteDeliverySystem,
	TagService:                    decodeService,
	TagLinkage:                    decodeLinkage,
	TagShortEvent:                 decodeShortEvent,
	TagExtendedEvent:              decodeExtendedEvent,
	TagComponent:                  decodeComponent,
	TagStreamID:                   decodeStreamID,
	TagContent:                    decodeContent,
	TagLocalTimeOffset:            decodeLocalTimeOffset,
	TagHierarchicalTransmission:   decodeHierarchicalTransmission,
	TagDigitalCopyControl:         decodeDigitalCopyControl,
	TagAudioComponent:             decodeAudioComponent,
	TagHyperLink:                  decodeHyperLink,
	TagTargetRegion:               decodeTargetRegion,
	TagVideoDecodeControl:         decodeVideoDecodeControl,
	TagDownloadContent:            decodeDownloadContent,
	TagCAEMMTS:                    decodeCAEMMTS,
	TagCAContractInfo:             decodeCAContractInfo,
	TagCAService:                  decodeCAService,
	TagTSInformation:              decodeTSInformation,
	TagExtendedBroadcaster:        decodeExtendedBroadcaster,
	TagLogoTransmission:           decodeLogoTransmission,
	TagSeries:                     decodeSeries,
	TagEventGroup:                 decodeEventGroup,
	TagSIParameter:                decodeSIParameter,
	TagBroadcasterName:            decodeBroadcasterName,
	TagComponentGroup:             decodeComponentGroup,
	TagLDTLinkage:                 decodeLDTLinkage,
	TagAccessControl:              decodeAccessControl,
	TagTerrestrialDeliverySystem:  decodeTerrestrialDeliverySystem,
	TagPartialReception:           decodePartialReception,
	TagEmergencyInformation:       decodeEmergencyInformation,
	TagDataComponent:              decodeDataComponent,
	TagSystemManagement:           decodeSystemManagement,
}
