package melcloud

import "encoding/json"

// redactedValue replaces sensitive field values in loggable payloads.
const redactedValue = "removed"

// redactedFields are the account info fields that never reach a log or
// event: the session token, client identity and account location.
var redactedFields = []string{
	"ContextKey",
	"ClientId",
	"Client",
	"Name",
	"MapLongitude",
	"MapLatitude",
}

// RedactAccountInfo returns a copy of an account info payload with every
// sensitive field overwritten. Fields absent from the payload are left
// absent rather than added. A payload that does not parse as an object is
// fully replaced, never passed through.
func RedactAccountInfo(raw json.RawMessage) json.RawMessage {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return json.RawMessage(`{"redacted":"unparseable payload"}`)
	}
	for _, field := range redactedFields {
		if _, ok := m[field]; ok {
			m[field] = redactedValue
		}
	}
	out, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage(`{"redacted":"unparseable payload"}`)
	}
	return out
}
