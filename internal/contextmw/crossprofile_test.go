package contextmw

import (
	"strings"
	"testing"

	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/dialect"
)

func respWithText(text string) *dialect.Response {
	return &dialect.Response{Content: []dialect.ContentBlock{{Type: dialect.BlockText, Text: text}}}
}

func TestStoreResultRequiresMinimumLength(t *testing.T) {
	store := NewCrossProfileStore()
	store.StoreResult("profile-a", respWithText("too short"))
	if len(store.byOwner["profile-a"]) != 0 {
		t.Error("expected short response to be dropped")
	}
}

func TestStoreResultTruncatesLongText(t *testing.T) {
	store := NewCrossProfileStore()
	long := strings.Repeat("x", 600)
	store.StoreResult("profile-a", respWithText(long))

	entries := store.byOwner["profile-a"]
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if !strings.HasSuffix(entries[0], "...") {
		t.Error("expected truncated entry to end with ellipsis")
	}
	if len(entries[0]) != maxEntryLength+3 {
		t.Errorf("entry length = %d, want %d", len(entries[0]), maxEntryLength+3)
	}
}

func TestStoreResultEvictsOldestBeyondCap(t *testing.T) {
	store := NewCrossProfileStore()
	text := strings.Repeat("y", 150)
	for i := 0; i < maxEntriesPerProfile+5; i++ {
		store.StoreResult("profile-a", respWithText(text))
	}
	if len(store.byOwner["profile-a"]) != maxEntriesPerProfile {
		t.Errorf("expected cap of %d entries, got %d", maxEntriesPerProfile, len(store.byOwner["profile-a"]))
	}
}

func TestCrossProfileApplyExcludesOwnProfile(t *testing.T) {
	store := NewCrossProfileStore()
	text := strings.Repeat("z", 150)
	store.StoreResult("profile-a", respWithText(text))
	store.StoreResult("profile-b", respWithText(text))

	cp := NewCrossProfile(config.CrossProfileConfig{Enabled: true, MaxContextSize: 10000}, store)
	body := userRequest("hi")
	cp.Apply("profile-a", body)

	joined := body.System.Joined()
	if strings.Contains(joined, "[From profile-a]") {
		t.Error("expected current profile's own entries to be excluded")
	}
	if !strings.Contains(joined, "[From profile-b]") {
		t.Error("expected other profile's entries to be included")
	}
}

func TestCrossProfileApplyNoopWhenDisabled(t *testing.T) {
	store := NewCrossProfileStore()
	store.StoreResult("profile-a", respWithText(strings.Repeat("z", 150)))

	cp := NewCrossProfile(config.CrossProfileConfig{Enabled: false}, store)
	body := userRequest("hi")
	cp.Apply("profile-b", body)

	if body.System != nil {
		t.Error("expected no injection when cross-profile sharing disabled")
	}
}
