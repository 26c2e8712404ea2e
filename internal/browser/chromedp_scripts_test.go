package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uiprobe/internal/locator"
)

func TestElementScript(t *testing.T) {
	t.Run("xpath query is embedded as a literal", func(t *testing.T) {
		script, err := elementScript(locator.MustParse(`xpath=//button[text()="Yeni Mesaj"]`), probeOpJS)
		require.NoError(t, err)
		assert.Contains(t, script, `"xpath"`)
		assert.Contains(t, script, `"//button[text()=\"Yeni Mesaj\"]"`)
		assert.Contains(t, script, "0 < count ? els[0] : null")
	})

	t.Run("nth index selects the match", func(t *testing.T) {
		script, err := elementScript(locator.MustParse("css=button >> nth=2"), clickPointOpJS)
		require.NoError(t, err)
		assert.Contains(t, script, "2 < count ? els[2] : null")
		assert.Contains(t, script, "elementFromPoint")
	})

	t.Run("text matcher is decoded", func(t *testing.T) {
		script, err := elementScript(locator.MustParse("text=/gönder/i"), fillPrepareOpJS)
		require.NoError(t, err)
		assert.Contains(t, script, `"mode":"regex"`)
		assert.Contains(t, script, `"pattern":"gönder"`)
		assert.Contains(t, script, `"flags":"i"`)
	})

	t.Run("script injection is neutralized", func(t *testing.T) {
		script, err := elementScript(locator.Locator{Strategy: locator.CSS, Query: `"); alert(1); ("`}, probeOpJS)
		require.NoError(t, err)
		assert.Contains(t, script, `"\"); alert(1); (\""`)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := elementScript(locator.Locator{Strategy: "role", Query: "button"}, probeOpJS)
		assert.ErrorIs(t, err, ErrUnsupportedLocator)
	})
}

func TestFrameScripts(t *testing.T) {
	script := frameReadyStateScript(3)
	assert.Contains(t, script, "})(3)")
	assert.Contains(t, script, "if (d) collect(d, out);", "nested frames are indexed too")
	assert.Contains(t, listFramesJS, "collect(document, [])")
}

func TestElementStateActionable(t *testing.T) {
	box := Rect{X: 10, Y: 10, Width: 100, Height: 30}
	tests := []struct {
		name  string
		state ElementState
		want  bool
	}{
		{"ready", ElementState{Count: 1, Attached: true, Visible: true, Enabled: true, Box: box}, true},
		{"detached", ElementState{Visible: true, Enabled: true, Box: box}, false},
		{"hidden", ElementState{Attached: true, Enabled: true, Box: box}, false},
		{"disabled", ElementState{Attached: true, Visible: true, Box: box}, false},
		{"zero size", ElementState{Attached: true, Visible: true, Enabled: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Actionable())
		})
	}

	x, y := box.Center()
	assert.Equal(t, 60.0, x)
	assert.Equal(t, 25.0, y)
}
