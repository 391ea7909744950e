package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeWelcome = "WELCOME"
	TypeState   = "STATE"
	TypeAct     = "ACT"
	TypeAck     = "ACK"
)

// Player actions carried by ACT.
const (
	ActUnlock         = "UNLOCK"
	ActUpgrade        = "UPGRADE"
	ActStartWork      = "START_WORK"
	ActHireManager    = "HIRE_MANAGER"
	ActCollectOffline = "COLLECT_OFFLINE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
