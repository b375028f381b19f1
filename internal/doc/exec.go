package doc

import (
	"log"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// The execution cache is process-wide and keyed purely by content hash, so
// identical snippets in different files or projects share one entry. It is
// append-only and unbounded; growth is an accepted open question rather
// than a silently applied eviction policy.
var (
	execMu    sync.RWMutex
	execCache = make(map[uint64]string)
	execGroup singleflight.Group
)

// ExecTransform runs matching code blocks through an interpreter and
// appends a block holding the captured stdout right after the original.
type ExecTransform struct {
	Identity
	Run  Runner
	Dir  string
	Bin  string
	Lang string
}

func (t *ExecTransform) Block(b Block) []Block {
	attr, src, ok := b.AsCodeBlock()
	if !ok || attr.Lang() != t.Lang {
		return []Block{b}
	}

	out, err := t.output(src)
	if err != nil {
		// Recoverable per-operation failure: keep the code block as-is.
		log.Printf("exec transform: %s failed: %v", t.Bin, err)
		return []Block{b}
	}

	return []Block{b, CodeBlock(Attr{}, out)}
}

// output returns the interpreter's stdout for src, executing it at most
// once per distinct content for the process lifetime. Concurrent compiles
// of identical content share a single execution.
func (t *ExecTransform) output(src string) (string, error) {
	key := xxhash.Sum64String(src)

	execMu.RLock()
	out, ok := execCache[key]
	execMu.RUnlock()
	if ok {
		return out, nil
	}

	v, err, _ := execGroup.Do(strconv.FormatUint(key, 16), func() (any, error) {
		execMu.RLock()
		out, ok := execCache[key]
		execMu.RUnlock()
		if ok {
			return out, nil
		}

		raw, err := t.Run(t.Dir, t.Bin, src)
		if err != nil {
			// Failures are not cached; the next compile retries.
			return nil, err
		}

		out = string(raw)
		execMu.Lock()
		execCache[key] = out
		execMu.Unlock()
		return out, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
