package adminbar

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Node is one toolbar entry
type Node struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Href  string `json:"href"`
	Meta  Meta   `json:"meta"`
}

// Meta holds accessibility attributes of a node
type Meta struct {
	Title string `json:"title,omitempty"`
}

// Menu collects the toolbar entries of one page view
type Menu struct {
	nodes []Node
}

func NewMenu() *Menu {
	return &Menu{}
}

// AddEntry appends an entry, replacing any earlier entry with the same id
func (m *Menu) AddEntry(id, title, href, metaTitle string) {
	node := Node{ID: id, Title: title, Href: href, Meta: Meta{Title: metaTitle}}
	for i := range m.nodes {
		if m.nodes[i].ID == id {
			m.nodes[i] = node
			return
		}
	}
	m.nodes = append(m.nodes, node)
}

// Nodes returns the entries in insertion order
func (m *Menu) Nodes() []Node {
	out := make([]Node, len(m.nodes))
	copy(out, m.nodes)
	return out
}

func (m *Menu) Len() int {
	return len(m.nodes)
}

// RenderHTML renders the menu as a <ul id="page-cache-toolbar"> fragment.
// Text and attributes are escaped by the html renderer.
func (m *Menu) RenderHTML() ([]byte, error) {
	list := element(atom.Ul, html.Attribute{Key: "id", Val: "page-cache-toolbar"})
	for _, n := range m.nodes {
		item := element(atom.Li, html.Attribute{Key: "id", Val: "toolbar-" + n.ID})
		attrs := []html.Attribute{{Key: "href", Val: n.Href}}
		if n.Meta.Title != "" {
			attrs = append(attrs, html.Attribute{Key: "title", Val: n.Meta.Title})
		}
		link := element(atom.A, attrs...)
		link.AppendChild(&html.Node{Type: html.TextNode, Data: n.Title})
		item.AppendChild(link)
		list.AppendChild(item)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, list); err != nil {
		return nil, fmt.Errorf("failed to render toolbar: %w", err)
	}
	return buf.Bytes(), nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}
