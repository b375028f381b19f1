package doc

import (
	"encoding/json"
	"testing"
)

// doubler duplicates every Str inline
type doubler struct {
	Identity
}

func (doubler) Inline(i Inline) []Inline {
	if i.Type == InlineStr {
		return []Inline{i, i}
	}
	return []Inline{i}
}

// dropper removes every code block
type dropper struct {
	Identity
}

func (dropper) Block(b Block) []Block {
	if b.Type == BlockCodeBlock {
		return nil
	}
	return []Block{b}
}

func TestWalkIdentity(t *testing.T) {
	tree := &Tree{
		APIVersion: []int{1, 23, 1},
		Meta:       map[string]any{},
		Blocks: []Block{
			Para([]Inline{Str("hello")}),
			CodeBlock(Attr{Classes: []string{"python"}}, "print(1)"),
		},
	}

	out := WalkTree(Identity{}, tree)
	if len(out.Blocks) != 2 {
		t.Fatalf("Expected 2 blocks, got %d", len(out.Blocks))
	}
	if out.Blocks[1].Type != BlockCodeBlock {
		t.Errorf("Expected code block, got %s", out.Blocks[1].Type)
	}
}

func TestWalkExpandsInlines(t *testing.T) {
	tree := &Tree{Blocks: []Block{Para([]Inline{Str("a"), Str("b")})}}

	out := WalkTree(doubler{}, tree)

	var inlines []Inline
	if err := json.Unmarshal(out.Blocks[0].Content, &inlines); err != nil {
		t.Fatalf("Failed to decode inlines: %v", err)
	}
	if len(inlines) != 4 {
		t.Errorf("Expected 4 inlines after doubling, got %d", len(inlines))
	}
}

func TestWalkRecursesNestedInlines(t *testing.T) {
	emph := Inline{Type: InlineEmph, Content: mustRaw([]Inline{Str("x")})}
	tree := &Tree{Blocks: []Block{Para([]Inline{emph})}}

	out := WalkTree(doubler{}, tree)

	var inlines []Inline
	if err := json.Unmarshal(out.Blocks[0].Content, &inlines); err != nil {
		t.Fatalf("Failed to decode inlines: %v", err)
	}
	if len(inlines) != 1 {
		t.Fatalf("Expected 1 emph inline, got %d", len(inlines))
	}

	var children []Inline
	if err := json.Unmarshal(inlines[0].Content, &children); err != nil {
		t.Fatalf("Failed to decode emph children: %v", err)
	}
	if len(children) != 2 {
		t.Errorf("Expected doubled child inside emph, got %d", len(children))
	}
}

func TestWalkRemovesBlocks(t *testing.T) {
	tree := &Tree{Blocks: []Block{
		CodeBlock(Attr{}, "gone"),
		Para([]Inline{Str("kept")}),
	}}

	out := WalkTree(dropper{}, tree)
	if len(out.Blocks) != 1 {
		t.Fatalf("Expected 1 block, got %d", len(out.Blocks))
	}
	if out.Blocks[0].Type != BlockPara {
		t.Errorf("Expected paragraph to survive, got %s", out.Blocks[0].Type)
	}
}

func TestWalkDoesNotMutateInput(t *testing.T) {
	tree := &Tree{Blocks: []Block{Para([]Inline{Str("a")})}}
	before := string(tree.Blocks[0].Content)

	WalkTree(doubler{}, tree)

	if string(tree.Blocks[0].Content) != before {
		t.Error("Walk should produce a new tree, not mutate the input")
	}
}

func TestAttrRoundTrip(t *testing.T) {
	attr := Attr{ID: "id1", Classes: []string{"python", "numberLines"}, Pairs: [][2]string{{"k", "v"}}}

	data, err := json.Marshal(attr)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back Attr
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.ID != attr.ID || back.Lang() != "python" || len(back.Pairs) != 1 {
		t.Errorf("Round trip mismatch: %+v", back)
	}
}

func TestAsCodeBlock(t *testing.T) {
	b := CodeBlock(Attr{Classes: []string{"graphviz"}}, "digraph {}")

	attr, text, ok := b.AsCodeBlock()
	if !ok {
		t.Fatal("Expected code block decode to succeed")
	}
	if attr.Lang() != "graphviz" {
		t.Errorf("Expected lang graphviz, got %q", attr.Lang())
	}
	if text != "digraph {}" {
		t.Errorf("Expected code text preserved, got %q", text)
	}

	if _, _, ok := Para(nil).AsCodeBlock(); ok {
		t.Error("Paragraph should not decode as code block")
	}
}
