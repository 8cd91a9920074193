package tables

// UniqueID computes the identifier spec.md §4.4 uses to key a table's
// reassembly/retention state: PAT and CAT always key to 0 (there is at
// most one current version of each, stream-wide), SDT keys to
// (table_id, transport_stream_id), NIT keys to network_id, and EIT
// keys to ((network_id << 32) | (transport_stream_id << 16) |
// service_id), with schedule sections additionally grouped by
// section_number/8 into 3-hour segments via EIT.SegmentIndex.
func UniqueID(t Table) uint64 {
	switch v := t.(type) {
	case *PAT, *CAT:
		return 0
	case *SDT:
		return uint64(v.ID)<<16 | uint64(v.TransportStreamID)
	case *NIT:
		return uint64(v.NetworkID)
	case *EIT:
		return EITUniqueID(v.OriginalNetworkID, v.TransportStreamID, v.ServiceID)
	default:
		return 0
	}
}

// EITUniqueID computes the EIT unique id from its three key fields
// directly, for callers that need it before a full EIT is decoded
// (e.g. to check retention state against a prior section's id).
func EITUniqueID(networkID, transportStreamID, serviceID uint16) uint64 {
	return uint64(networkID)<<32 | uint64(transportStreamID)<<16 | uint64(serviceID)
}
