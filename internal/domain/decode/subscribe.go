package decode

import "encoding/json"

// SubscribeRequest is the control message sent once per connection.
type SubscribeRequest struct {
	Call   string   `json:"call"`
	Events []string `json:"events"`
}

// SubscribeMessage returns {"call":"subscribe","events":["CombatData"]}.
func SubscribeMessage() []byte {
	b, _ := json.Marshal(SubscribeRequest{Call: "subscribe", Events: []string{TypeCombatData}}) //nolint:errcheck // fixed struct
	return b
}
