package model

// MessageType is the logical W3CP message kind.
type MessageType string

const (
	MessageTypeIdentityChallenge MessageType = "identityChallenge"
	MessageTypeIdentityProof     MessageType = "identityProof"
	MessageTypeConnectionStatus  MessageType = "connectionStatus"
	MessageTypeMessageError      MessageType = "messageError"
	MessageTypeChargePointStatus MessageType = "chargepointStatus"
)

// Message is the generic envelope. Signature and hash are filled in by the
// identity layer; this runtime leaves them empty.
type Message[T any] struct {
	Type              MessageType `json:"type"`
	Payload           T           `json:"payload"`
	PayloadSignature  *string     `json:"payloadSignature"`
	PayloadSha256Hash *string     `json:"payloadSha256Hash"`
}

type ConnectionState string

const (
	ConnectionStateVerified     ConnectionState = "verified"
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateError        ConnectionState = "error"
)

// ConnectionStatus is sent by the backend after identity verification.
type ConnectionStatus struct {
	Status ConnectionState `json:"status"`
	Reason string          `json:"reason,omitempty"`
}
