package themes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinIconSetsAgree(t *testing.T) {
	assert.Equal(t, []string{"awesome", "none"}, BuiltinIconSets())

	none, err := BuiltinIcons("none")
	require.NoError(t, err)
	awesome, err := BuiltinIcons("awesome")
	require.NoError(t, err)

	for name := range none {
		assert.Contains(t, awesome, name)
	}
	assert.Len(t, awesome, len(none))
	assert.Equal(t, "CPU", none["cpu"])
	assert.Equal(t, "\uf2db", awesome["cpu"])

	_, err = BuiltinIcons("material")
	assert.Error(t, err)
}

func TestIconsGet(t *testing.T) {
	icons := Icons{"cpu": "C", "blank": ""}

	got, err := icons.Get("cpu", "")
	require.NoError(t, err)
	assert.Equal(t, " C ", got)

	got, err = icons.Get("cpu", "<{icon}>")
	require.NoError(t, err)
	assert.Equal(t, "<C>", got)

	got, err = icons.Get("blank", "")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = icons.Get("", "")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = icons.Get("gpu", "")
	assert.EqualError(t, err, "icon 'gpu' not found")

	icons.ApplyOverrides(map[string]string{"gpu": "G"})
	got, err = icons.Get("gpu", "{icon}")
	require.NoError(t, err)
	assert.Equal(t, "G", got)
}

func TestParseIcons(t *testing.T) {
	icons, err := ParseIcons([]byte("time = \"T\"\nmusic = \"\\u266a\"\n"))
	require.NoError(t, err)
	assert.Equal(t, Icons{"time": "T", "music": "♪"}, icons)

	_, err = ParseIcons([]byte("time = 3"))
	assert.Error(t, err)
}
