package engine

import (
	"bytes"
	"encoding/json"
	"sort"
)

const (
	// DefaultPartition is the partition managed objects live in.
	DefaultPartition = "Common"

	// LocalOnlyPartition holds objects that are not synced across a device cluster.
	LocalOnlyPartition = "LOCAL_ONLY"
)

// Declaration maps a partition name to the class sections declared in it.
// The same shape is used for current-state snapshots.
type Declaration map[string]Section

// Section maps a class name to its declared instances.
type Section map[string]*Instances

// Instances is a set of named instance bodies that remembers the order in
// which names were first added. Bodies are opaque to the engine.
type Instances struct {
	names  []string
	bodies map[string]json.RawMessage
}

// NewInstances returns an instance set holding the given names with empty bodies.
func NewInstances(names ...string) *Instances {
	s := &Instances{bodies: make(map[string]json.RawMessage, len(names))}
	for _, name := range names {
		s.Set(name, json.RawMessage(`{}`))
	}
	return s
}

// Set adds or replaces an instance body. New names are appended to the order.
func (s *Instances) Set(name string, body json.RawMessage) {
	if s.bodies == nil {
		s.bodies = make(map[string]json.RawMessage)
	}
	if _, ok := s.bodies[name]; !ok {
		s.names = append(s.names, name)
	}
	s.bodies[name] = body
}

// Names returns instance names in insertion order.
func (s *Instances) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of instances.
func (s *Instances) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Has reports whether name is present.
func (s *Instances) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.bodies[name]
	return ok
}

// Body returns the raw body of an instance.
func (s *Instances) Body(name string) (json.RawMessage, bool) {
	if s == nil {
		return nil, false
	}
	body, ok := s.bodies[name]
	return body, ok
}

// UnmarshalJSON decodes a JSON object keeping its key order. Anything other
// than an object decodes as an empty set: a malformed section has no
// candidates rather than failing the whole declaration.
func (s *Instances) UnmarshalJSON(data []byte) error {
	*s = Instances{bodies: make(map[string]json.RawMessage)}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := keyTok.(string)

		var body json.RawMessage
		if err := dec.Decode(&body); err != nil {
			return err
		}
		s.Set(name, body)
	}
	return nil
}

// MarshalJSON encodes the set as a JSON object in insertion order.
func (s *Instances) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		body := s.bodies[name]
		if len(body) == 0 {
			body = json.RawMessage("null")
		}
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a declaration, ignoring top-level members that are
// not objects (schema version, class markers and similar metadata).
func (d *Declaration) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Declaration, len(raw))
	for partition, body := range raw {
		if !isJSONObject(body) {
			continue
		}
		var section Section
		if err := json.Unmarshal(body, &section); err != nil {
			return err
		}
		out[partition] = section
	}
	*d = out
	return nil
}

// ParseDeclaration decodes a declaration from JSON.
func ParseDeclaration(data []byte) (Declaration, error) {
	var d Declaration
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// Instances returns the instances of a class in a partition, or nil.
func (d Declaration) Instances(partition, class string) *Instances {
	if d == nil {
		return nil
	}
	return d[partition][class]
}

// Classes returns the class names of a section in lexical order.
func (s Section) Classes() []string {
	out := make([]string, 0, len(s))
	for class := range s {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

// isLocalOnly reports whether an instance body carries "localOnly": true.
func isLocalOnly(body json.RawMessage) bool {
	if !isJSONObject(body) {
		return false
	}
	var flags struct {
		LocalOnly bool `json:"localOnly"`
	}
	if err := json.Unmarshal(body, &flags); err != nil {
		return false
	}
	return flags.LocalOnly
}

func isJSONObject(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
