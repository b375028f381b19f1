// Package doc compiles markdown source into a pandoc document tree and
// rewrites it through an ordered list of transforms (code execution,
// diagram rendering) before handing it to viewers or the PDF assembler.
package doc

import (
	"encoding/json"
	"fmt"
)

// Tree is a full pandoc document as emitted by `pandoc -t json`.
type Tree struct {
	APIVersion []int           `json:"pandoc-api-version"`
	Meta       map[string]any  `json:"meta"`
	Blocks     []Block         `json:"blocks"`
}

// Block is one block-level node in pandoc's tagged form: {"t": ..., "c": ...}.
// The payload stays raw; typed accessors decode the node kinds the engine
// cares about and everything else passes through untouched.
type Block struct {
	Type    string          `json:"t"`
	Content json.RawMessage `json:"c,omitempty"`
}

// Inline is one inline-level node, same tagged form as Block.
type Inline struct {
	Type    string          `json:"t"`
	Content json.RawMessage `json:"c,omitempty"`
}

// Node types with structure the engine understands.
const (
	BlockCodeBlock = "CodeBlock"
	BlockPara      = "Para"
	BlockPlain     = "Plain"

	InlineStr    = "Str"
	InlineEmph   = "Emph"
	InlineStrong = "Strong"
	InlineSpan   = "Span"
	InlineImage  = "Image"
)

// Attr is pandoc's (identifier, classes, key-value pairs) attribute triple,
// serialized as a three-element array.
type Attr struct {
	ID      string
	Classes []string
	Pairs   [][2]string
}

func (a Attr) MarshalJSON() ([]byte, error) {
	classes := a.Classes
	if classes == nil {
		classes = []string{}
	}
	pairs := a.Pairs
	if pairs == nil {
		pairs = [][2]string{}
	}
	return json.Marshal([]any{a.ID, classes, pairs})
}

func (a *Attr) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("attr: expected 3 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &a.ID); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[1], &a.Classes); err != nil {
		return err
	}
	return json.Unmarshal(parts[2], &a.Pairs)
}

// Lang reports the block language: the first class of a code block's attr.
func (a Attr) Lang() string {
	if len(a.Classes) == 0 {
		return ""
	}
	return a.Classes[0]
}

func mustRaw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// All inputs are engine-built values; a failure here is a bug.
		panic(err)
	}
	return data
}

// CodeBlock builds a code block node.
func CodeBlock(attr Attr, text string) Block {
	return Block{Type: BlockCodeBlock, Content: mustRaw([]any{attr, text})}
}

// AsCodeBlock decodes a code block's attr and text. ok is false for any
// other node type or a malformed payload.
func (b Block) AsCodeBlock() (attr Attr, text string, ok bool) {
	if b.Type != BlockCodeBlock {
		return Attr{}, "", false
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(b.Content, &parts); err != nil || len(parts) != 2 {
		return Attr{}, "", false
	}
	if err := json.Unmarshal(parts[0], &attr); err != nil {
		return Attr{}, "", false
	}
	if err := json.Unmarshal(parts[1], &text); err != nil {
		return Attr{}, "", false
	}
	return attr, text, true
}

// Para builds a paragraph from inline children.
func Para(inlines []Inline) Block {
	if inlines == nil {
		inlines = []Inline{}
	}
	return Block{Type: BlockPara, Content: mustRaw(inlines)}
}

// Str builds a text inline.
func Str(s string) Inline {
	return Inline{Type: InlineStr, Content: mustRaw(s)}
}

// Image builds an image inline pointing at url.
func Image(attr Attr, alt []Inline, url, title string) Inline {
	if alt == nil {
		alt = []Inline{}
	}
	return Inline{Type: InlineImage, Content: mustRaw([]any{attr, alt, [2]string{url, title}})}
}

// AsImage decodes an image inline's target url. ok is false for any other
// node type or a malformed payload.
func (i Inline) AsImage() (url string, ok bool) {
	if i.Type != InlineImage {
		return "", false
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(i.Content, &parts); err != nil || len(parts) != 3 {
		return "", false
	}
	var target [2]string
	if err := json.Unmarshal(parts[2], &target); err != nil {
		return "", false
	}
	return target[0], true
}
