// Package news recovers news items from a chat answer and serves them with
// a short-lived cache.
package news

import (
	"encoding/json"
	"strings"
)

// Item is one news entry.
type Item struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// strategy tries one interpretation of a decoded answer.
type strategy func(doc any) ([]any, bool)

// strategies run in order; the first that recognizes the shape wins even if
// it yields nothing.
var strategies = []strategy{
	nestedCard,
	typedCard,
	bareList,
	newsField,
}

// Extract returns the items found in raw. It never fails: anything it cannot
// interpret yields an empty slice.
func Extract(raw string) (items []Item) {
	defer func() {
		if recover() != nil {
			items = []Item{}
		}
	}()

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fromText(raw)
	}

	for _, try := range strategies {
		if list, ok := try(doc); ok {
			return normalize(list)
		}
	}
	return []Item{}
}

// nestedCard handles {"data": "<json>"} where the inner document holds
// variables.data.defaultValue.
func nestedCard(doc any) ([]any, bool) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, false
	}
	inner, ok := obj["data"].(string)
	if !ok {
		return nil, false
	}

	var nested any
	if err := json.Unmarshal([]byte(inner), &nested); err != nil {
		return nil, true
	}
	list, _ := dig(nested, "variables", "data", "defaultValue").([]any)
	return list, true
}

// typedCard handles {"type": "card", "data": {"variables": ...}}.
func typedCard(doc any) ([]any, bool) {
	obj, ok := doc.(map[string]any)
	if !ok || obj["type"] != "card" {
		return nil, false
	}
	list, _ := dig(obj, "data", "variables", "data", "defaultValue").([]any)
	return list, true
}

func bareList(doc any) ([]any, bool) {
	list, ok := doc.([]any)
	return list, ok
}

func newsField(doc any) ([]any, bool) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, false
	}
	list, ok := obj["news"].([]any)
	return list, ok
}

// dig walks nested objects along path and returns nil on any miss.
func dig(v any, path ...string) any {
	for _, key := range path {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = obj[key]
	}
	return v
}

func normalize(list []any) []Item {
	items := make([]Item, 0, len(list))
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := Item{
			Title:   str(obj["title"]),
			Content: str(obj["content"]),
			URL:     str(obj["url"]),
		}
		if item.Title == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// fromText splits free text into blank-line separated paragraphs. The first
// line of a paragraph is its title, a line starting with a URL scheme is its
// url and everything else is appended to the content.
func fromText(raw string) []Item {
	items := []Item{}
	var cur Item

	flush := func() {
		if cur.Title != "" {
			items = append(items, cur)
		}
		cur = Item{}
	}

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://"):
			cur.URL = line
		case cur.Title == "":
			cur.Title = line
		default:
			cur.Content += line
		}
	}
	flush()

	return items
}
