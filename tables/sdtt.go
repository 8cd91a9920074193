package tables

import (
	"fmt"

	"github.com/tonalfitness/libisdb/descriptor"
	"github.com/tonalfitness/libisdb/psi"
)

// SDTTContent is one content entry (one downloadable software version)
// within an SDTT section.
type SDTTContent struct {
	Group            uint8
	TargetVersion    uint16
	NewVersion       uint16
	DownloadLevel    uint8
	VersionIndicator uint8
	ScheduleTimeshiftInformation uint8
	Descriptors      *descriptor.Block
}

// SDTT is the decoded Software Download Trigger Table (table_id
// 0xC3), which announces available downloadable software updates for
// a receiver's maker/model. A structural decoder per SPEC_FULL.md §C.
type SDTT struct {
	MakerID           uint8
	ModelID           uint8
	TransportStreamID uint16
	OriginalNetworkID uint16
	ServiceID         uint16
	Contents          []SDTTContent
}

func (t *SDTT) TableID() uint8 { return TableIDSDTT }

// DecodeSDTT decodes an SDTT from a CRC-verified section.
func DecodeSDTT(s *psi.Section) (*SDTT, error) {
	if s.Header.TableID != TableIDSDTT {
		return nil, fmt.Errorf("tables: expected SDTT table_id 0x%02X, got 0x%02X", TableIDSDTT, s.Header.TableID)
	}
	if len(s.Payload) < 7 {
		return nil, fmt.Errorf("tables: SDTT payload too short: %d bytes", len(s.Payload))
	}

	t := &SDTT{
		MakerID: uint8(s.Header.TableIDExtension >> 8),
		ModelID: uint8(s.Header.TableIDExtension),
	}

	t.TransportStreamID = uint16(s.Payload[0])<<8 | uint16(s.Payload[1])
	t.OriginalNetworkID = uint16(s.Payload[2])<<8 | uint16(s.Payload[3])
	t.ServiceID = uint16(s.Payload[4])<<8 | uint16(s.Payload[5])
	numContents := int(s.Payload[6])

	pos := 7
	for i := 0; i < numContents && pos+7 <= len(s.Payload); i++ {
		group := s.Payload[pos] >> 4
		targetVersion := (uint16(s.Payload[pos])&0x0F)<<8 | uint16(s.Payload[pos+1])
		versionIndicator := s.Payload[pos+1] >> 6 // overlaps target_version encoding in some profiles; kept uninterpreted beyond the raw bits
		newVersion := uint16(s.Payload[pos+2]&0x0F)<<8 | uint16(s.Payload[pos+3])
		downloadLevel := s.Payload[pos+4] >> 6
		scheduleTimeshift := s.Payload[pos+4] & 0x0F
		descLength := int(s.Payload[pos+5]&0x0F)<<8 | int(s.Payload[pos+6])
		pos += 7
		if pos+descLength > len(s.Payload) {
			break
		}
		t.Contents = append(t.Contents, SDTTContent{
			Group:                        group,
			TargetVersion:                targetVersion,
			NewVersion:                   newVersion,
			DownloadLevel:                downloadLevel,
			VersionIndicator:             versionIndicator,
			ScheduleTimeshiftInformation: scheduleTimeshift,
			Descriptors:                  descriptor.ParseBlock(s.Payload[pos : pos+descLength]),
		})
		pos += descLength
	}

	return t, nil
}
