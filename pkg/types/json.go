package types

import "encoding/json"

// Nodes persist with their attributes flattened into the node object:
// {"id": "...", "type": "...", "title": "...", ...}. The id and type keys
// are reserved; everything else round-trips through Attrs.

// MarshalJSON implements json.Marshaler.
func (n Node) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(n.Attrs)+2)
	for k, v := range n.Attrs {
		flat[k] = v
	}
	flat["id"] = n.ID
	flat["type"] = string(n.Type)
	return json.Marshal(flat)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if id, ok := flat["id"].(string); ok {
		n.ID = id
	}
	if t, ok := flat["type"].(string); ok {
		n.Type = NodeType(t)
	}
	delete(flat, "id")
	delete(flat, "type")
	if len(flat) > 0 {
		n.Attrs = flat
	}
	return nil
}
