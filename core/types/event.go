package types

// Event is the typed payload engines emit after a successful state
// transition. Attributes stay flat strings so payloads serialize uniformly
// into logs and the status feed.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
