package model

type MessageType string

const (
	MessageTypeRegister   MessageType = "register"
	MessageTypeRegistered MessageType = "registered"
	MessageTypeUnregister MessageType = "unregister"
	MessageTypePing       MessageType = "ping"
	MessageTypePong       MessageType = "pong"
	MessageTypeStatus     MessageType = "status"
	MessageTypeCommand    MessageType = "command"
	MessageTypeAck        MessageType = "ack"
	MessageTypeError      MessageType = "error"
)

// --- WebSocket Messages ---

type WSMessage struct {
	Type     MessageType `json:"type"`
	AgentKey string      `json:"agent_key,omitempty"`
	Command  string      `json:"command,omitempty"`
	Event    *BoothEvent `json:"event,omitempty"`
	Error    string      `json:"error,omitempty"`
}
