package proxyconfig

import "encoding/json"

// Trace records how a resolution picked its configuration.
type Trace struct {
	Selected string       `json:"selected,omitempty"`
	Layers   []Provenance `json:"layers"`
}

// Provenance describes one candidate layer in a Trace.
type Provenance struct {
	Scope    Scope  `json:"scope"`
	Name     string `json:"name,omitempty"`
	Present  bool   `json:"present"`
	Selected bool   `json:"selected"`
}

// ToJSON serialises the trace for logging.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON decodes a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
