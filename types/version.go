package types

// Version is the canonical project version.
// The CLI and the event frame contract share this version.
const Version = "0.4.0"

// ContractVersion is the inbound event frame contract version.
// Engines must stamp every envelope with this value.
const ContractVersion = Version
