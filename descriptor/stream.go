package descriptor

import "github.com/tonalfitness/libisdb/arib"

// HierarchicalTransmissionDescriptor (tag 0xC0) describes a
// hierarchical-modulation ES's dependency on another ES.
type HierarchicalTransmissionDescriptor struct {
	base
	QualityLevel         uint8
	ReferencePID         uint16
}

func decodeHierarchicalTransmission(content []byte) Descriptor {
	d := &HierarchicalTransmissionDescriptor{}
	d.tag = TagHierarchicalTransmission
	d.len = uint8(len(content))
	if len(content) < 3 {
		return d
	}
	d.QualityLevel = content[0] & 0x01
	d.ReferencePID = uint16(content[1]&0x1F)<<8 | uint16(content[2])
	d.valid = true
	return d
}

// DigitalCopyControlDescriptor (tag 0xC1) carries copy-protection
// (CGMS-A / APS) signalling for an ES or event.
type DigitalCopyControlDescriptor struct {
	base
	DigitalRecordingControlData uint8
	MaximumBitRateFlag          bool
	MaximumBitRate              uint8
	ComponentControls           []DigitalCopyComponentControl
}

// DigitalCopyComponentControl is one per-component override within a
// DigitalCopyControlDescriptor.
type DigitalCopyComponentControl struct {
	ComponentTag                 uint8
	DigitalRecordingControlData  uint8
	MaximumBitRateFlag           bool
	MaximumBitRate               uint8
}

func decodeDigitalCopyControl(content []byte) Descriptor {
	d := &DigitalCopyControlDescriptor{}
	d.tag = TagDigitalCopyControl
	d.len = uint8(len(content))
	if len(content) < 1 {
		return d
	}
	b := content[0]
	d.DigitalRecordingControlData = (b >> 6) & 0x03
	d.MaximumBitRateFlag = b&0x20 != 0
	componentControlFlag := b&0x10 != 0
	pos := 1
	if d.MaximumBitRateFlag {
		if pos >= len(content) {
			return d
		}
		d.MaximumBitRate = content[pos]
		pos++
	}
	if componentControlFlag {
		if pos >= len(content) {
			return d
		}
		numComponents := int(content[pos])
		pos++
		for i := 0; i < numComponents && pos < len(content); i++ {
			cc := DigitalCopyComponentControl{ComponentTag: content[pos]}
			pos++
			if pos >= len(content) {
				break
			}
			cb := content[pos]
			cc.DigitalRecordingControlData = (cb >> 6) & 0x03
			cc.MaximumBitRateFlag = cb&0x20 != 0
			pos++
			if cc.MaximumBitRateFlag {
				if pos >= len(content) {
					break
				}
				cc.MaximumBitRate = content[pos]
				pos++
			}
			d.ComponentControls = append(d.ComponentControls, cc)
		}
	}
	d.valid = true
	return d
}

// AudioComponentDescriptor (tag 0xC4) describes one audio ES's
// channel layout, language, and sampling rate.
type AudioComponentDescriptor struct {
	base
	StreamContent     uint8
	ComponentType     uint8
	ComponentTag      uint8
	StreamType        uint8
	SimulcastGroupTag uint8
	ESMultiLingualFlag bool
	MainComponentFlag bool
	QualityIndicator  uint8
	SamplingRate      uint8
	LanguageCode      uint32
	LanguageCode2     uint32
	Text              string
}

func decodeAudioComponent(content []byte) Descriptor {
	d := &AudioComponentDescriptor{}
	d.tag = TagAudioComponent
	d.len = uint8(len(content))
	if len(content) < 9 {
		return d
	}
	d.StreamContent = content[0] & 0x0F
	d.ComponentType = content[1]
	d.ComponentTag = content[2]
	d.StreamType = content[3]
	d.SimulcastGroupTag = content[4]
	d.ESMultiLingualFlag = content[5]&0x80 != 0
	d.MainComponentFlag = content[5]&0x40 != 0
	d.QualityIndicator = (content[5] >> 4) & 0x03
	d.SamplingRate = (content[5] >> 1) & 0x07
	d.LanguageCode = uint32(content[6])<<16 | uint32(content[7])<<8 | uint32(content[8])
	pos := 9
	if d.ESMultiLingualFlag {
		if pos+3 > len(content) {
			return d
		}
		d.LanguageCode2 = uint32(content[pos])<<16 | uint32(content[pos+1])<<8 | uint32(content[pos+2])
		pos += 3
	}
	d.Text = arib.NewDecoder().Decode(content[pos:], 0)
	d.valid = true
	return d
}

// VideoDecodeControlDescriptor (tag 0xC8) carries still-picture and
// sequence-end-code hints for an MPEG-2 video ES.
type VideoDecodeControlDescriptor struct {
	base
	StillPictureFlag    bool
	SequenceEndCodeFlag bool
	VideoFormat         uint8
	FrameRateConvControl uint8
}

func decodeVideoDecodeControl(content []byte) Descriptor {
	d := &VideoDecodeControlDescriptor{}
	d.tag = TagVideoDecodeControl
	d.len = uint8(len(content))
	if len(content) < 1 {
		return d
	}
	b := content[0]
	d.StillPictureFlag = b&0x80 != 0
	d.SequenceEndCodeFlag = b&0x40 != 0
	d.VideoFormat = (b >> 1) & 0x07
	d.FrameRateConvControl = b & 0x01
	d.valid = true
	return d
}

// DownloadContentDescriptor (tag 0xC9) describes a data-carousel
// download's module structure, used by the CDT/SDTT supplement
// (SPEC_FULL.md §C).
type DownloadContentDescriptor struct {
	base
	RebootFlag  bool
	AddOnFlag   bool
	ComponentSize uint32
	DownloadID  uint32
	TimeOutValDS uint32
	LeakRate    uint32
	ComponentTag uint8
}

func decodeDownloadContent(content []byte) Descriptor {
	d := &DownloadContentDescriptor{}
	d.tag = TagDownloadContent
	d.len = uint8(len(content))
	if len(content) < 1 {
		return d
	}
	b := content[0]
	d.RebootFlag = b&0x80 != 0
	d.AddOnFlag = b&0x40 != 0

	pos := 1
	if pos+16 > len(content) {
		return d
	}
	d.ComponentSize = be32(content[pos:])
	d.DownloadID = be32(content[pos+4:])
	d.TimeOutValDS = be32(content[pos+8:])
	d.LeakRate = be32(content[pos+12:]) >> 2
	pos += 16

	if pos < len(content) {
		d.ComponentTag = content[pos]
	}
	d.valid = true
	return d
}

func be32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// DataComponentDescriptor (tag 0xFD) identifies the data-broadcasting
// application protocol carried by an ES (e.g. ARIB BML, one-seg data
// service).
type DataComponentDescriptor struct {
	base
	DataComponentID uint16
	AdditionalDataComponentInfo []byte
}

func decodeDataComponent(content []byte) Descriptor {
	d := &DataComponentDescriptor{}
	d.tag = TagDataComponent
	d.len = uint8(len(content))
	if len(content) < 2 {
		return d
	}
	d.DataComponentID = uint16(content[0])<<8 | uint16(content[1])
	d.AdditionalDataComponentInfo = append([]byte(nil), content[2:]...)
	d.valid = true
	return d
}
