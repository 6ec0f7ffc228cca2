package model

// ConnectionKind enumerates the phases of the long-lived event connection.
type ConnectionKind string

const (
	ConnDisconnected ConnectionKind = "disconnected"
	ConnConnecting   ConnectionKind = "connecting"
	ConnConnected    ConnectionKind = "connected"
	ConnError        ConnectionKind = "error"
)

// ConnectionState is the transport-owned connection status. DeviceID and
// ServerVersion are only set while Kind is ConnConnected; Message only
// while Kind is ConnError.
type ConnectionState struct {
	Kind          ConnectionKind `json:"kind"`
	DeviceID      string         `json:"deviceId,omitempty"`
	ServerVersion string         `json:"serverVersion,omitempty"`
	Message       string         `json:"message,omitempty"`
}
