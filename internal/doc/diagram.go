package doc

import (
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Rendered diagrams are cached by content hash like executed code, but the
// cached value is the output file name instead of inline text. Same
// process-wide, append-only, unbounded policy as the execution cache.
var (
	renderMu    sync.RWMutex
	renderCache = make(map[uint64]string)
	renderGroup singleflight.Group
)

// DiagramTransform pipes matching code blocks to an external renderer that
// writes an image into the working directory, and replaces the block with a
// paragraph holding an image reference to that file.
type DiagramTransform struct {
	Identity
	Run  Runner
	Dir  string
	Bin  string
	Lang string
}

func (t *DiagramTransform) Block(b Block) []Block {
	attr, src, ok := b.AsCodeBlock()
	if !ok || attr.Lang() != t.Lang {
		return []Block{b}
	}

	name, err := t.render(src)
	if err != nil {
		log.Printf("diagram transform: %s failed: %v", t.Bin, err)
		return []Block{b}
	}

	return []Block{Para([]Inline{Image(Attr{}, nil, name, name)})}
}

// render produces the image file for src and returns its name relative to
// the working directory. Identical content renders at most once.
func (t *DiagramTransform) render(src string) (string, error) {
	key := xxhash.Sum64String(src)

	renderMu.RLock()
	name, ok := renderCache[key]
	renderMu.RUnlock()
	if ok {
		return name, nil
	}

	v, err, _ := renderGroup.Do(strconv.FormatUint(key, 16), func() (any, error) {
		renderMu.RLock()
		name, ok := renderCache[key]
		renderMu.RUnlock()
		if ok {
			return name, nil
		}

		name = fmt.Sprintf("graph-%x.png", key)
		outPath := filepath.Join(t.Dir, name)
		if _, err := t.Run(t.Dir, t.Bin, src, "-Tpng", "-o"+outPath); err != nil {
			return nil, err
		}

		renderMu.Lock()
		renderCache[key] = name
		renderMu.Unlock()
		return name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
