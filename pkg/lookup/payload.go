package lookup

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Payload is the provider's "data" object for one identifier.
// The raw object is preserved so exports carry every field the provider
// returned, not just the ones parsed here.
type Payload struct {
	UserData        []json.RawMessage
	TicketData      []json.RawMessage
	ConfidenceScore *float64

	raw json.RawMessage
}

type payloadFields struct {
	UserData        []json.RawMessage `json:"user_data,omitempty"`
	TicketData      []json.RawMessage `json:"ticket_data,omitempty"`
	ConfidenceScore json.RawMessage   `json:"confidence_score,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var fields payloadFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	p.UserData = fields.UserData
	p.TicketData = fields.TicketData
	p.ConfidenceScore = parseScore(fields.ConfidenceScore)
	p.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON implements json.Marshaler. It emits the provider's original
// object when one was decoded.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	fields := payloadFields{
		UserData:   p.UserData,
		TicketData: p.TicketData,
	}
	if p.ConfidenceScore != nil {
		fields.ConfidenceScore = json.RawMessage(strconv.FormatFloat(*p.ConfidenceScore, 'f', -1, 64))
	}
	return json.Marshal(fields)
}

// HasRecords reports whether the provider returned any user or ticket data.
func (p *Payload) HasRecords() bool {
	return p != nil && (len(p.UserData) > 0 || len(p.TicketData) > 0)
}

// Confidence returns the confidence score, or 0 when absent.
func (p *Payload) Confidence() float64 {
	if p == nil || p.ConfidenceScore == nil {
		return 0
	}
	return *p.ConfidenceScore
}

// Raw returns the JSON object this payload was decoded from, or a freshly
// encoded object for payloads built in code.
func (p *Payload) Raw() json.RawMessage {
	if p == nil {
		return nil
	}
	data, err := p.MarshalJSON()
	if err != nil {
		return nil
	}
	return data
}

// parseScore accepts a JSON number or a numeric string. Anything else,
// including null, is treated as absent.
func parseScore(raw json.RawMessage) *float64 {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
