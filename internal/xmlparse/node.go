// Package xmlparse turns sanitized upstream XML byte sequences into the
// typed row records defined in internal/model, across four parser
// families: ledger masters, inventory vouchers, ledger vouchers, and
// trial balance rows.
//
// The upstream's response shape is irregular (deeply nested, optional,
// and sometimes repeated LIST wrappers) so parsing goes through a small
// generic element tree rather than struct-tag unmarshaling into a fixed
// shape.
package xmlparse

import (
	"encoding/xml"
	"io"
	"strings"
)

// Node is a generic XML element: a name, its character data, and its
// child elements in document order. encoding/xml is the stdlib's only
// XML facility; no third-party XML library exists anywhere in the
// example pack, so this stays on the standard library by necessity
// (see DESIGN.md).
type Node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []Node     `xml:",any"`
}

// ParseDocument decodes a sanitized XML string into the list of
// top-level elements under its root.
func ParseDocument(sanitized string) (*Node, error) {
	dec := xml.NewDecoder(strings.NewReader(sanitized))
	dec.Strict = false
	var root Node
	if err := dec.Decode(&root); err != nil && err != io.EOF {
		return nil, err
	}
	return &root, nil
}

// FindAll returns every descendant element named name, at any depth,
// in document order.
func (n *Node) FindAll(name string) []Node {
	var out []Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for i := range cur.Nodes {
			child := &cur.Nodes[i]
			if child.XMLName.Local == name {
				out = append(out, *child)
			}
			walk(child)
		}
	}
	walk(n)
	return out
}

// Child returns the first direct child named name, or nil.
func (n *Node) Child(name string) *Node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}
	return nil
}

// Children returns every direct child named name.
func (n *Node) Children(name string) []Node {
	var out []Node
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			out = append(out, n.Nodes[i])
		}
	}
	return out
}

// ChildrenAny returns every direct child matching any of the given
// names, preserving document order — used for the tolerant
// ALLLEDGERENTRIES.LIST / LEDGERENTRIES.LIST pairing.
func (n *Node) ChildrenAny(names ...string) []Node {
	var out []Node
	for i := range n.Nodes {
		local := n.Nodes[i].XMLName.Local
		for _, name := range names {
			if local == name {
				out = append(out, n.Nodes[i])
				break
			}
		}
	}
	return out
}

// Text returns trimmed character data of the first child named name, or
// the empty string if absent.
func (n *Node) Text(name string) string {
	c := n.Child(name)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Content)
}

// Attr returns the value of attribute name on n, or "".
func (n *Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
