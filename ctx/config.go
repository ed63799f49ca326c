// Package ctx assembles the engine's runtime dependencies — the parsed
// configuration document, the data-node tree, the simulated clock, the
// durable bookkeeping store, and the sync-compute offload pool — behind
// one explicit handle, replacing the source's thread-local ContextVar
// (spec.md §9 design note: "no hidden global context; callers thread an
// explicit handle").
package ctx

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/x2ee/c3/logic"
)

// LoadConfigDocument reads path as JSON and pops its "dnodes" key,
// matching the source's Config.__init__: the document's only other
// recognised content is what the caller names explicitly (none, for this
// engine — the node tree is the whole of it).
func LoadConfigDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ctx: reading config %s: %w", path, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ctx: parsing config %s: %w", path, err)
	}

	dnodes, ok := doc["dnodes"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("ctx: config %s has no \"dnodes\" object", path)
	}
	delete(doc, "dnodes")
	if len(doc) > 0 {
		return nil, fmt.Errorf("Unexpected entries %s", logic.FormatUnexpectedEntries(doc))
	}
	return dnodes, nil
}
