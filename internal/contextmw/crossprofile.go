package contextmw

import (
	"fmt"
	"sync"

	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/dialect"
)

// maxEntriesPerProfile caps each profile's stored entry list (§5 "Shared
// cross-profile context": each list capped at 50 entries, drop oldest).
const maxEntriesPerProfile = 50

// minEntryLength and maxEntryLength bound what StoreResult keeps (§4.9
// pass 2: require length >= 100, truncate to 500 with ellipsis).
const (
	minEntryLength = 100
	maxEntryLength = 500
)

// CrossProfileStore holds recent successful-response snippets keyed by the
// profile that served them, shared across all other profiles' requests.
type CrossProfileStore struct {
	mu      sync.Mutex
	byOwner map[string][]string
}

// NewCrossProfileStore returns an empty store.
func NewCrossProfileStore() *CrossProfileStore {
	return &CrossProfileStore{byOwner: make(map[string][]string)}
}

// StoreResult extracts the last assistant message's text from resp and, if
// it meets the minimum length, appends a truncated entry under owner,
// evicting the oldest entry if the list is already at capacity (§4.9
// pass 2, §5).
func (s *CrossProfileStore) StoreResult(owner string, resp *dialect.Response) {
	if s == nil || resp == nil {
		return
	}
	text := lastAssistantText(resp)
	if len(text) < minEntryLength {
		return
	}
	if len(text) > maxEntryLength {
		text = text[:maxEntryLength] + "..."
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append(s.byOwner[owner], text)
	if len(entries) > maxEntriesPerProfile {
		entries = entries[len(entries)-maxEntriesPerProfile:]
	}
	s.byOwner[owner] = entries
}

func lastAssistantText(resp *dialect.Response) string {
	out := ""
	for _, block := range resp.Content {
		if block.Type == dialect.BlockText {
			out += block.Text
		}
	}
	return out
}

// CrossProfile applies §4.9 pass 2: concatenate up to max_context_size
// bytes of recent entries from other profiles into body.System.
type CrossProfile struct {
	cfg   config.CrossProfileConfig
	store *CrossProfileStore
}

// NewCrossProfile binds a shared store to this pass's config.
func NewCrossProfile(cfg config.CrossProfileConfig, store *CrossProfileStore) *CrossProfile {
	return &CrossProfile{cfg: cfg, store: store}
}

// Apply injects recent cross-profile entries into body.System, if enabled.
func (c *CrossProfile) Apply(currentProfile string, body *dialect.Request) {
	if c == nil || !c.cfg.Enabled || c.store == nil {
		return
	}
	maxSize := c.cfg.MaxContextSize
	if maxSize <= 0 {
		return
	}

	c.store.mu.Lock()
	snapshot := make(map[string][]string, len(c.store.byOwner))
	for owner, entries := range c.store.byOwner {
		if owner == currentProfile {
			continue
		}
		snapshot[owner] = entries
	}
	c.store.mu.Unlock()

	var collected string
	for owner, entries := range snapshot {
		for _, entry := range entries {
			line := fmt.Sprintf("[From %s] %s", owner, entry)
			if len(collected)+len(line) > maxSize {
				continue
			}
			if collected != "" {
				collected += "\n"
			}
			collected += line
		}
	}
	if collected == "" {
		return
	}
	if body.System == nil {
		body.System = &dialect.SystemPrompt{}
	}
	dialect.AppendContext(body.System, collected)
}
