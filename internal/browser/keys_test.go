package browser

import (
	"testing"

	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chromedp.KeyEvent dispatches per rune off the kb.Keys table, so Enter and
// Escape must be sent as their single control runes, never as key names.
func TestControlKeysAreSingleRunes(t *testing.T) {
	for name, key := range map[string]string{"Enter": kb.Enter, "Escape": kb.Escape} {
		runes := []rune(key)
		require.Len(t, runes, 1, name)

		mapped, ok := kb.Keys[runes[0]]
		require.True(t, ok, name)
		assert.Equal(t, name, mapped.Key)
		assert.Equal(t, name, mapped.Code)
	}
}

func TestKeyNamesWouldTypeAsText(t *testing.T) {
	for _, name := range []string{"Enter", "Escape"} {
		for _, r := range name {
			mapped, ok := kb.Keys[r]
			require.True(t, ok, "%q in %s", r, name)
			assert.True(t, mapped.Print, "%q in %s", r, name)
			assert.NotEqual(t, name, mapped.Key)
		}
	}
}
