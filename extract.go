package bootstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

var (
	errAttributeMissing = errors.New("attribute missing")
	errAttributeEmpty   = errors.New("attribute empty")
)

// Extract parses an HTML document and decodes the payload held by anchor.
func Extract(r io.Reader, anchor Anchor, opts ...Option) (Payload, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("bootstate: parse document: %w", err)
	}
	payload, _, err := ExtractNode(doc, anchor, opts...)
	return payload, err
}

// ExtractNode decodes the payload held by anchor in an already parsed
// document and returns the anchor element. When several elements share the
// id the first in document order wins.
func ExtractNode(root *html.Node, anchor Anchor, opts ...Option) (Payload, *html.Node, error) {
	cfg := applyOptions(opts)

	matches := findByID(root, anchor.ID)
	if anchor.ID == "" || len(matches) == 0 {
		return nil, nil, &MissingAnchorError{Anchor: anchor}
	}
	if len(matches) > 1 {
		cfg.logger.Warn("duplicate anchor elements, using the first",
			zap.String("anchor", anchor.ID),
			zap.Int("count", len(matches)),
		)
	}
	node := matches[0]

	raw, ok := attribute(node, anchor.Attribute)
	if !ok {
		return nil, node, &MalformedPayloadError{Anchor: anchor, Attribute: anchor.Attribute, Err: errAttributeMissing}
	}
	if strings.TrimSpace(raw) == "" {
		return nil, node, &MalformedPayloadError{Anchor: anchor, Attribute: anchor.Attribute, Err: errAttributeEmpty}
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, node, &MalformedPayloadError{Anchor: anchor, Attribute: anchor.Attribute, Err: err}
	}
	payload, ok := decoded.(map[string]any)
	if !ok {
		return nil, node, &MalformedPayloadError{
			Anchor:    anchor,
			Attribute: anchor.Attribute,
			Err:       fmt.Errorf("expected JSON object, got %s", jsonKind(decoded)),
		}
	}
	return payload, node, nil
}

func findByID(root *html.Node, id string) []*html.Node {
	if root == nil || id == "" {
		return nil
	}
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if value, ok := attribute(n, "id"); ok && value == id {
				out = append(out, n)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return out
}

func attribute(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, key) {
			return attr.Val, true
		}
	}
	return "", false
}

func jsonKind(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", value)
	}
}
