package descriptor

// CADescriptor (tag 0x09) identifies a conditional access system and
// its EMM/ECM PID.
type CADescriptor struct {
	base
	CASystemID uint16
	CAPID      uint16
	PrivateData []byte
}

func decodeCA(content []byte) Descriptor {
	d := &CADescriptor{}
	d.tag = TagCA
	d.len = uint8(len(content))
	if len(content) < 4 {
		return d
	}
	d.CASystemID = uint16(content[0])<<8 | uint16(content[1])
	d.CAPID = uint16(content[2]&0x1F)<<8 | uint16(content[3])
	d.PrivateData = append([]byte(nil), content[4:]...)
	d.valid = true
	return d
}

// CAEMMTSDescriptor (tag 0xCA) lists the transport stream carrying EMM
// for a CA system.
type CAEMMTSDescriptor struct {
	base
	CASystemID        uint16
	TransportStreamID uint16
	NetworkID         uint16
	PowerSupplyPeriod uint8
}

func decodeCAEMMTS(content []byte) Descriptor {
	d := &CAEMMTSDescriptor{}
	d.tag = TagCAEMMTS
	d.len = uint8(len(content))
	if len(content) < 7 {
		return d
	}
	d.CASystemID = uint16(content[0])<<8 | uint16(content[1])
	d.TransportStreamID = uint16(content[2])<<8 | uint16(content[3])
	d.NetworkID = uint16(content[4])<<8 | uint16(content[5])
	d.PowerSupplyPeriod = content[6]
	d.valid = true
	return d
}

// CAContractInfoDescriptor (tag 0xCB) carries CA contract/message info
// for pay-per-view style signalling.
type CAContractInfoDescriptor struct {
	base
	CASystemID     uint16
	CAUnitID       uint8
	ComponentTags  []uint8
	ContractVerificationInfo []byte
	FeeName        []byte
}

func decodeCAContractInfo(content []byte) Descriptor {
	d := &CAContractInfoDescriptor{}
	d.tag = TagCAContractInfo
	d.len = uint8(len(content))
	if len(content) < 3 {
		return d
	}
	d.CASystemID = uint16(content[0])<<8 | uint16(content[1])
	b := content[2]
	d.CAUnitID = (b >> 4) & 0x0F
	numComponents := int(b & 0x0F)
	pos := 3
	for i := 0; i < numComponents && pos < len(content); i++ {
		d.ComponentTags = append(d.ComponentTags, content[pos])
		pos++
	}
	if pos >= len(content) {
		d.valid = true
		return d
	}
	verLen := int(content[pos])
	pos++
	if pos+verLen > len(content) {
		return d
	}
	d.ContractVerificationInfo = append([]byte(nil), content[pos:pos+verLen]...)
	pos += verLen
	if pos >= len(content) {
		d.valid = true
		return d
	}
	feeLen := int(content[pos])
	pos++
	if pos+feeLen > len(content) {
		return d
	}
	d.FeeName = append([]byte(nil), content[pos:pos+feeLen]...)
	d.valid = true
	return d
}

// CAServiceDescriptor (tag 0xCC) lists the services a CA system
// protects.
type CAServiceDescriptor struct {
	base
	CASystemID    uint16
	CABroadcasterGroupID uint8
	MessageControl uint8
	ServiceIDs    []uint16
}

func decodeCAService(content []byte) Descriptor {
	d := &CAServiceDescriptor{}
	d.tag = TagCAService
	d.len = uint8(len(content))
	if len(content) < 4 {
		return d
	}
	d.CASystemID = uint16(content[0])<<8 | uint16(content[1])
	d.CABroadcasterGroupID = content[2]
	d.MessageControl = content[3]
	for pos := 4; pos+1 < len(content); pos += 2 {
		d.ServiceIDs = append(d.ServiceIDs, uint16(content[pos])<<8|uint16(content[pos+1]))
	}
	d.valid = true
	return d
}

// AccessControlDescriptor (tag 0xF6) signals the CA system gating
// access to a service (digital terrestrial simulcast use).
type AccessControlDescriptor struct {
	base
	CASystemID   uint16
	TransmissionType uint8
	PID          uint16
	PrivateData  []byte
}

func decodeAccessControl(content []byte) Descriptor {
	d := &AccessControlDescriptor{}
	d.tag = TagAccessControl
	d.len = uint8(len(content))
	if len(content) < 4 {
		return d
	}
	d.CASystemID = uint16(content[0])<<8 | uint16(content[1])
	d.TransmissionType = (content[2] >> 5) & 0x07
	d.PID = uint16(content[2]&0x1F)<<8 | uint16(content[3])
	d.PrivateData = append([]byte(nil), content[4:]...)
	d.valid = true
	return d
}
