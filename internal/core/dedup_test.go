package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupWindow_Seen(t *testing.T) {
	d := newDedupWindow(3)

	assert.False(t, d.Seen("a"))
	assert.True(t, d.Seen("a"))
	assert.False(t, d.Seen("b"))
	assert.False(t, d.Seen("c"))
	assert.True(t, d.Seen("b"))
}

func TestDedupWindow_EvictsOldest(t *testing.T) {
	d := newDedupWindow(2)

	d.Seen("a")
	d.Seen("b")
	d.Seen("c")

	assert.True(t, d.Seen("c"))
	assert.True(t, d.Seen("b"))
	assert.False(t, d.Seen("a"), "a fell out of the window")
}

func TestDedupWindow_EmptyKey(t *testing.T) {
	d := newDedupWindow(4)

	assert.False(t, d.Seen(""))
	assert.False(t, d.Seen(""))
}

func TestDedupWindow_Capacity(t *testing.T) {
	d := newDedupWindow(100)
	for i := 0; i < 250; i++ {
		d.Seen(fmt.Sprintf("k%d", i))
	}

	assert.Len(t, d.keys, 100)
	assert.True(t, d.Seen("k249"))
	assert.False(t, d.Seen("k0"))
}

func TestDedupKey(t *testing.T) {
	assert.Equal(t, "bot_a/ev-1", dedupKey("bot_a", "ev-1"))
	assert.Empty(t, dedupKey("bot_a", ""))
	assert.NotEqual(t, dedupKey("bot_a", "ev-1"), dedupKey("bot_b", "ev-1"))
}
