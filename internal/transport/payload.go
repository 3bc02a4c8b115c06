// internal/transport/payload.go
package transport

import (
	jsoniter "github.com/json-iterator/go"
)

// json sorts map keys so equal payloads encode to equal bodies.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ContentType is sent with every beacon request.
const ContentType = "text/plain"

// Payload is one event request as it goes over the wire. Keys are kept short
// because the body is sent once per event.
type Payload struct {
	Name     string         `json:"n"`
	URL      string         `json:"u"`
	Domain   string         `json:"d"`
	Referrer *string        `json:"r"`
	Width    int            `json:"w"`
	Meta     string         `json:"m,omitempty"`
	Props    map[string]any `json:"p,omitempty"`
	Hash     int            `json:"h"`

	// Custom is false only for the automatic pageview.
	Custom bool `json:"-"`
}

// Encode renders the payload as a single compact JSON object.
func Encode(p *Payload) ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses a request body produced by Encode.
func Decode(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
