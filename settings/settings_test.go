package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeOutOfRangeFallsBackToDefault(t *testing.T) {
	defaults := DefaultSettings()

	cases := []struct {
		name string
		raw  map[string]interface{}
	}{
		{"confidence too low", map[string]interface{}{"confidence": 0.01}},
		{"confidence too high", map[string]interface{}{"confidence": 1.5}},
		{"negative weight", map[string]interface{}{"geminiWeight": -0.2}},
		{"file size below minimum", map[string]interface{}{"maxFileSize": 10}},
		{"file size above maximum", map[string]interface{}{"maxFileSize": 999999}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Sanitize(tc.raw, defaults)
			// out-of-range never clamps, it falls back to the default value
			assert.Equal(t, defaults, got)
		})
	}
}

func TestSanitizeAcceptsInRangeValues(t *testing.T) {
	got := Sanitize(map[string]interface{}{
		"projectTag":  "tower-7",
		"confidence":  0.85,
		"maxFileSize": float64(500),
		"maxWidth":    float64(800),
	}, DefaultSettings())

	assert.Equal(t, "tower-7", got.ProjectTag)
	assert.Equal(t, 0.85, got.Confidence)
	assert.Equal(t, 500, got.MaxFileSize)
	assert.Equal(t, 800, got.MaxWidth)
	assert.Equal(t, DefaultSettings().MaxHeight, got.MaxHeight)
}

func TestSanitizeWrongTypesFallBack(t *testing.T) {
	defaults := DefaultSettings()
	got := Sanitize(map[string]interface{}{
		"confidence":   "not a number",
		"maxFileSize":  true,
		"projectTag":   42,
		"outputFormat": "docx",
	}, defaults)
	assert.Equal(t, defaults, got)
}

func TestSanitizeNumericStrings(t *testing.T) {
	got := Sanitize(map[string]interface{}{"confidence": "0.5"}, DefaultSettings())
	assert.Equal(t, 0.5, got.Confidence)
}

func TestSanitizeFiltersTagCharacters(t *testing.T) {
	got := Sanitize(map[string]interface{}{"projectTag": "  bridge <east>!  "}, DefaultSettings())
	assert.Equal(t, "bridge east", got.ProjectTag)

	// nothing left after filtering falls back to default
	got = Sanitize(map[string]interface{}{"projectTag": "<<>>!!"}, DefaultSettings())
	assert.Equal(t, DefaultSettings().ProjectTag, got.ProjectTag)
}

func TestParseSettingsJSONMalformed(t *testing.T) {
	for _, raw := range []string{"", "{", "not json", "[1,2,3"} {
		got := ParseSettingsJSON(raw)
		assert.Equal(t, DefaultSettings(), got, "raw=%q", raw)
	}
}

func TestParseSettingsJSONValid(t *testing.T) {
	got := ParseSettingsJSON(`{"projectTag":"dock_9","confidence":0.9}`)
	require.Equal(t, "dock_9", got.ProjectTag)
	require.Equal(t, 0.9, got.Confidence)
	require.Equal(t, DefaultSettings().MaxFileSize, got.MaxFileSize)
}

func TestSanitizeLocation(t *testing.T) {
	loc := SanitizeLocation("Block C, Level 2/3 <script>")
	require.NotNil(t, loc)
	assert.Equal(t, "Block C, Level 2/3 script", *loc)

	assert.Nil(t, SanitizeLocation("!!!"))
	assert.Nil(t, SanitizeLocation("   "))
}
