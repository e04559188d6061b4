package operation

import "maps"

// Message is a host message: an arbitrary JSON-like object with a
// "payload" field.
type Message map[string]any

// Clone returns a shallow copy of m.
func (m Message) Clone() Message {
	out := make(Message, len(m)+2)
	maps.Copy(out, m)
	return out
}

// Payload returns the payload as an object, or nil if it is not one.
func (m Message) Payload() map[string]any {
	p, _ := m["payload"].(map[string]any)
	return p
}

// String returns the string value of key, or "" if it is missing or not a
// string.
func (m Message) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// FileResult builds the payload reported by single-path operations.
func FileResult(filename, filepath string) map[string]any {
	return map[string]any{
		"filename": filename,
		"filepath": filepath,
	}
}

// Reply clones msg and sets the workdir and payload fields.
func Reply(msg Message, workdir string, payload any) Message {
	out := msg.Clone()
	out["workdir"] = workdir
	out["payload"] = payload
	return out
}
