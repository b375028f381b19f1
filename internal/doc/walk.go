package doc

import "encoding/json"

// Transform rewrites nodes during a single depth-first pass over a tree.
// Either method may expand one node into zero, one, or many replacements.
// Output nodes are never revisited, so a compile stays one linear pass no
// matter how many transforms run.
type Transform interface {
	Block(b Block) []Block
	Inline(i Inline) []Inline
}

// Identity is the pass-through transform. Embed it and override the one
// method a transform cares about.
type Identity struct{}

func (Identity) Block(b Block) []Block    { return []Block{b} }
func (Identity) Inline(i Inline) []Inline { return []Inline{i} }

// WalkTree applies one transform to a whole document, producing a new tree.
// The input tree is never mutated.
func WalkTree(t Transform, tree *Tree) *Tree {
	blocks := make([]Block, 0, len(tree.Blocks))
	for _, b := range tree.Blocks {
		blocks = append(blocks, walkBlock(t, b)...)
	}
	return &Tree{APIVersion: tree.APIVersion, Meta: tree.Meta, Blocks: blocks}
}

func walkBlock(t Transform, b Block) []Block {
	out := t.Block(b)
	result := make([]Block, 0, len(out))
	for _, b := range out {
		switch b.Type {
		case BlockPara, BlockPlain:
			var inlines []Inline
			if err := json.Unmarshal(b.Content, &inlines); err != nil {
				result = append(result, b)
				continue
			}
			walked := walkInlines(t, inlines)
			result = append(result, Block{Type: b.Type, Content: mustRaw(walked)})
		default:
			result = append(result, b)
		}
	}
	return result
}

func walkInlines(t Transform, inlines []Inline) []Inline {
	result := make([]Inline, 0, len(inlines))
	for _, i := range inlines {
		result = append(result, walkInline(t, i)...)
	}
	return result
}

func walkInline(t Transform, i Inline) []Inline {
	out := t.Inline(i)
	result := make([]Inline, 0, len(out))
	for _, i := range out {
		switch i.Type {
		case InlineEmph, InlineStrong:
			var children []Inline
			if err := json.Unmarshal(i.Content, &children); err != nil {
				result = append(result, i)
				continue
			}
			walked := walkInlines(t, children)
			result = append(result, Inline{Type: i.Type, Content: mustRaw(walked)})
		case InlineSpan:
			var parts []json.RawMessage
			if err := json.Unmarshal(i.Content, &parts); err != nil || len(parts) != 2 {
				result = append(result, i)
				continue
			}
			var children []Inline
			if err := json.Unmarshal(parts[1], &children); err != nil {
				result = append(result, i)
				continue
			}
			walked := walkInlines(t, children)
			result = append(result, Inline{Type: i.Type, Content: mustRaw([]any{parts[0], walked})})
		default:
			result = append(result, i)
		}
	}
	return result
}
