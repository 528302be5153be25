package models

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ElementKind tags the Element variants.
type ElementKind string

const (
	// ElementKindText is a prose element.
	ElementKindText ElementKind = "text"
	// ElementKindImage is an image element.
	ElementKindImage ElementKind = "image"
)

// DefaultAltText is used for images generated without alt text.
const DefaultAltText = "Generated image"

// Element is one realized piece of content in a Document.
type Element interface {
	// Kind returns the element variant.
	Kind() ElementKind
	// SubtaskIndex returns the index of the subtask that produced the element.
	SubtaskIndex() int
}

// TextElement holds generated prose.
type TextElement struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// Kind implements Element.
func (TextElement) Kind() ElementKind { return ElementKindText }

// SubtaskIndex implements Element.
func (e TextElement) SubtaskIndex() int { return e.Index }

// ImageElement points at a generated image. Either URL or Data is set.
type ImageElement struct {
	Index    int    `json:"index"`
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type,omitempty"`
	AltText  string `json:"alt_text,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Kind implements Element.
func (ImageElement) Kind() ElementKind { return ElementKindImage }

// SubtaskIndex implements Element.
func (e ImageElement) SubtaskIndex() int { return e.Index }

// Alt returns the alt text, falling back to DefaultAltText.
func (e ImageElement) Alt() string {
	if e.AltText != "" {
		return e.AltText
	}
	return DefaultAltText
}

// Source returns a reference usable in Markdown or HTML. In-memory rasters
// become data URIs.
func (e ImageElement) Source() string {
	if e.URL != "" || len(e.Data) == 0 {
		return e.URL
	}
	mime := e.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(e.Data)
}

// ErrSealed is returned when appending to a sealed document.
var ErrSealed = errors.New("document is sealed")

// Document is the ordered, append-only result of executing a plan.
// The zero value is an empty document ready for use.
type Document struct {
	elements []Element
	sealed   bool
}

// Append adds an element. Elements must arrive in strictly ascending
// subtask index order.
func (d *Document) Append(e Element) error {
	if d.sealed {
		return ErrSealed
	}
	if e == nil {
		return fmt.Errorf("nil element")
	}
	if n := len(d.elements); n > 0 {
		last := d.elements[n-1].SubtaskIndex()
		if e.SubtaskIndex() <= last {
			return fmt.Errorf("element for subtask %d appended after subtask %d", e.SubtaskIndex(), last)
		}
	}
	d.elements = append(d.elements, e)
	return nil
}

// Seal makes the document read-only. Later appends fail with ErrSealed.
func (d *Document) Seal() { d.sealed = true }

// Sealed reports whether Seal has been called.
func (d *Document) Sealed() bool { return d.sealed }

// AddText appends a text element for the given subtask.
func (d *Document) AddText(index int, content string) error {
	return d.Append(TextElement{Index: index, Content: content})
}

// AddImage appends an image element for the given subtask.
func (d *Document) AddImage(index int, url, altText, caption string) error {
	return d.Append(ImageElement{Index: index, URL: url, AltText: altText, Caption: caption})
}

// Elements returns a copy of the elements in document order.
func (d *Document) Elements() []Element {
	out := make([]Element, len(d.elements))
	copy(out, d.elements)
	return out
}

// Len returns the number of elements.
func (d *Document) Len() int {
	return len(d.elements)
}

// ToMarkdown renders the document. Text elements become paragraphs, image
// elements become image references with an optional italic caption beneath.
func (d *Document) ToMarkdown() string {
	var sb strings.Builder
	for _, el := range d.elements {
		switch e := el.(type) {
		case TextElement:
			sb.WriteString(e.Content)
			sb.WriteString("\n\n")
		case ImageElement:
			fmt.Fprintf(&sb, "![%s](%s)\n", e.Alt(), e.Source())
			if e.Caption != "" {
				fmt.Fprintf(&sb, "*%s*\n", e.Caption)
			}
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String())
}

// MarshalJSON encodes the document as {"elements": [...]} with a type tag
// on every element.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := struct {
		Elements []json.RawMessage `json:"elements"`
	}{Elements: make([]json.RawMessage, 0, len(d.elements))}

	for _, el := range d.elements {
		body, err := json.Marshal(el)
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		fields["type"] = el.Kind()
		raw, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		out.Elements = append(out.Elements, raw)
	}
	return json.Marshal(out)
}
