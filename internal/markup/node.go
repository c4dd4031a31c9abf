// Package markup ingests tagged-markup documents (electronic invoices,
// system exports) into the same flat row shape the tabular parsers produce.
// A document is first classified against an ordered table of known shapes;
// unknown documents go through a structural heuristic instead.
package markup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedDocument indicates the bytes are not well-formed markup.
var ErrMalformedDocument = errors.New("malformed markup document")

// ErrUnknownStructure indicates a well-formed document in which no known
// schema and no repeating record structure could be found.
var ErrUnknownStructure = errors.New("unrecognized document structure")

// Node is one element of a decoded document tree. Namespace prefixes are
// stripped on decode, so cfdi:Comprobante and Comprobante are the same tag.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Children []*Node
}

// Decode parses document bytes into a Node tree rooted at the first element.
func Decode(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var root *Node
	var stack []*Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Tag: t.Name.Local, Attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", ErrMalformedDocument)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced end tag </%s>", ErrMalformedDocument, t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedDocument)
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: unclosed element <%s>", ErrMalformedDocument, stack[len(stack)-1].Tag)
	}

	root.trim()
	return root, nil
}

func (n *Node) trim() {
	n.Text = strings.TrimSpace(n.Text)
	for _, c := range n.Children {
		c.trim()
	}
}

// Child returns the first direct child with the given tag, case-insensitive.
func (n *Node) Child(tag string) *Node {
	for _, c := range n.Children {
		if strings.EqualFold(c.Tag, tag) {
			return c
		}
	}
	return nil
}

// childrenByTag returns all direct children with the given tag, in document
// order.
func (n *Node) childrenByTag(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if strings.EqualFold(c.Tag, tag) {
			out = append(out, c)
		}
	}
	return out
}

// lookup resolves a mapping path against this node via sequential
// first-child lookup. A path is slash-separated element tags with an
// optional trailing @attribute: "Conceptos/Concepto@Descripcion".
// The empty element path addresses the node itself.
func (n *Node) lookup(path string) (string, bool) {
	elemPath, attr, hasAttr := strings.Cut(path, "@")

	cur := n
	if elemPath != "" {
		for _, seg := range strings.Split(elemPath, "/") {
			cur = cur.Child(seg)
			if cur == nil {
				return "", false
			}
		}
	}

	if hasAttr {
		v, ok := cur.Attrs[attr]
		return v, ok
	}
	if cur.Text == "" {
		return "", false
	}
	return cur.Text, true
}
