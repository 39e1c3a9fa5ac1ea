package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MarshalJSON encodes the node with its children as an object keyed by team
// name, in insertion order. An absent business unit is encoded as "".
func (n *TeamNode) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeNode(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeNode appends n and its subtree to buf in one pass. Only scalar strings
// go through json.Marshal.
func writeNode(buf *bytes.Buffer, n *TeamNode) error {
	fields := [...]struct {
		key   string
		value string
	}{
		{"teamName", n.TeamName},
		{"parentTeam", n.ParentTeam},
		{"managerName", n.ManagerName},
		{"businessUnit", n.BusinessUnitOrEmpty()},
	}

	buf.WriteByte('{')
	for _, f := range fields {
		buf.WriteByte('"')
		buf.WriteString(f.key)
		buf.WriteString(`":`)
		if err := writeString(buf, f.value); err != nil {
			return err
		}
		buf.WriteByte(',')
	}
	buf.WriteString(`"teams":{`)
	for i, child := range n.Children() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, child.TeamName); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeNode(buf, child); err != nil {
			return err
		}
	}
	buf.WriteString("}}")
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(raw)
	return nil
}

// UnmarshalJSON decodes the format written by MarshalJSON, keeping child order.
// An empty array or null is accepted for "teams".
func (n *TeamNode) UnmarshalJSON(data []byte) error {
	node, err := decodeNode(json.NewDecoder(bytes.NewReader(data)))
	if err != nil {
		return err
	}
	*n = *node
	return nil
}

// decodeNode reads one node object from dec. Children are read from the same
// decoder, so the whole tree is consumed in a single pass.
func decodeNode(dec *json.Decoder) (*TeamNode, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	n := &TeamNode{}
	for dec.More() {
		key, err := decodeKey(dec)
		if err != nil {
			return nil, err
		}
		switch key {
		case "teamName":
			err = dec.Decode(&n.TeamName)
		case "parentTeam":
			err = dec.Decode(&n.ParentTeam)
		case "managerName":
			err = dec.Decode(&n.ManagerName)
		case "businessUnit":
			var bu string
			if err = dec.Decode(&bu); err == nil && bu != "" {
				n.BusinessUnit = &bu
			}
		case "teams":
			err = decodeChildren(dec, n)
		default:
			var skip json.RawMessage
			err = dec.Decode(&skip)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return n, nil
}

func decodeChildren(dec *json.Decoder, n *TeamNode) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch tok {
	case nil:
		return nil
	case json.Delim('['):
		if dec.More() {
			return fmt.Errorf("team %q: teams must be an object", n.TeamName)
		}
		return expectDelim(dec, ']')
	case json.Delim('{'):
	default:
		return fmt.Errorf("team %q: teams must be an object", n.TeamName)
	}

	for dec.More() {
		key, err := decodeKey(dec)
		if err != nil {
			return err
		}
		child, err := decodeNode(dec)
		if err != nil {
			return err
		}
		if child.TeamName != key {
			return fmt.Errorf("team %q: child key %q does not match teamName %q", n.TeamName, key, child.TeamName)
		}
		n.AddChild(child)
	}
	return expectDelim(dec, '}')
}

func decodeKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// HierarchyDocument is the response body: a single-key object mapping the
// root name to its node.
type HierarchyDocument struct {
	RootName string
	Root     *TeamNode
}

// Encode writes {"<rootName>": <root>}. Unlike json.Marshal it does not
// re-validate the output, so it is not bound by encoding/json's nesting limit.
func (d HierarchyDocument) Encode() ([]byte, error) {
	if d.Root == nil {
		return nil, errors.New("hierarchy document has no root")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeString(&buf, d.RootName); err != nil {
		return nil, err
	}
	buf.WriteByte(':')
	if err := writeNode(&buf, d.Root); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes {"<rootName>": <root>}.
func (d HierarchyDocument) MarshalJSON() ([]byte, error) {
	return d.Encode()
}

// DecodeHierarchyDocument reads a single-key document from r. It streams
// tokens and is not bound by encoding/json's nesting limit.
func DecodeHierarchyDocument(r io.Reader) (HierarchyDocument, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return HierarchyDocument{}, err
	}
	if !dec.More() {
		return HierarchyDocument{}, errors.New("hierarchy document must have exactly one root, got 0")
	}
	name, err := decodeKey(dec)
	if err != nil {
		return HierarchyDocument{}, err
	}
	root, err := decodeNode(dec)
	if err != nil {
		return HierarchyDocument{}, err
	}
	if dec.More() {
		return HierarchyDocument{}, errors.New("hierarchy document must have exactly one root")
	}
	if err := expectDelim(dec, '}'); err != nil {
		return HierarchyDocument{}, err
	}
	return HierarchyDocument{RootName: name, Root: root}, nil
}

// UnmarshalJSON decodes a single-key document.
func (d *HierarchyDocument) UnmarshalJSON(data []byte) error {
	doc, err := DecodeHierarchyDocument(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*d = doc
	return nil
}
