package realtime

import "encoding/json"

// Event names on the wire, both directions.
const (
	EventAddUser     = "addUser"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
	EventGetUsers    = "getUsers"
	EventGetMessage  = "getMessage"
)

// Envelope is the frame shape for every realtime event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessagePayload is the client's sendMessage body. The sender field is
// ignored on receipt; the authenticated identity always wins.
type MessagePayload struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Text     string `json:"text"`
}

// TypingPayload carries typing and stopTyping signals.
type TypingPayload struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}

// DeliveredMessage is the getMessage push to an online recipient. The
// delivered flag only means the live push happened; the durable record is
// written independently over the HTTP path.
type DeliveredMessage struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Delivered bool   `json:"delivered"`
}

// PresenceList is the getUsers broadcast body.
type PresenceList struct {
	Users []string `json:"users"`
}

func marshalEvent(name string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: raw})
}
