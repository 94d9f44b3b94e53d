package models

// ConnectionState is the transport-level state of the peer connection.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionReconnecting ConnectionState = "reconnecting"
)

// Label returns the human-readable status shown by presentation layers.
func (c ConnectionState) Label() string {
	switch c {
	case ConnectionConnecting:
		return "Connecting..."
	case ConnectionConnected:
		return "Connected"
	case ConnectionReconnecting:
		return "Reconnecting..."
	case ConnectionDisconnected:
		return "Disconnected"
	default:
		return string(c)
	}
}
