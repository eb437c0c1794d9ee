package services

import (
	"encoding/json"
	"strings"
)

// Node is a parsed comment body: either a text leaf or a container of nodes.
type Node interface {
	Flatten() string
}

type TextNode string

func (t TextNode) Flatten() string { return string(t) }

type ContainerNode []Node

// Flatten joins the children depth-first with single spaces.
func (c ContainerNode) Flatten() string {
	parts := make([]string, len(c))
	for i, n := range c {
		parts[i] = n.Flatten()
	}
	return strings.Join(parts, " ")
}

// ParseNode maps a decoded rich document onto Node. A node with text is a leaf even when it
// also has content; shapes with neither flatten to "".
func ParseNode(v any) Node {
	switch t := v.(type) {
	case string:
		return TextNode(t)
	case map[string]any:
		if s, ok := t["text"].(string); ok && s != "" {
			return TextNode(s)
		}
		if arr, ok := t["content"].([]any); ok {
			out := make(ContainerNode, 0, len(arr))
			for _, it := range arr {
				out = append(out, ParseNode(it))
			}
			return out
		}
	}
	return TextNode("")
}

const bodyDumpLimit = 100

// commentBody renders a comment body as one line of text.
func commentBody(body any) string {
	switch t := body.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(t))
	case map[string]any:
		if _, ok := t["content"].([]any); ok {
			return strings.TrimSpace(ParseNode(t).Flatten())
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	r := []rune(string(b))
	if len(r) > bodyDumpLimit {
		r = r[:bodyDumpLimit]
	}
	return string(r)
}
