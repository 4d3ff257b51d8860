package settings

import (
	"encoding/json"
	"log"
	"math"
	"strconv"
	"strings"
)

// Bounds for numeric settings fields. A value outside its range falls back to
// the field default, it is never clamped to the nearest bound.
const (
	MinConfidence = 0.05
	MaxConfidence = 1.0

	MinModelWeight = 0.0
	MaxModelWeight = 1.0

	MinFileSizeKB = 50
	MaxFileSizeKB = 15000

	MinDimensionPx = 16
	MaxDimensionPx = 16384
)

// ProjectSettings is the sanitized per-project configuration. It is treated as
// immutable once produced by Sanitize and is stored JSON-encoded on the project.
type ProjectSettings struct {
	ProjectTag   string  `json:"projectTag"`
	Confidence   float64 `json:"confidence"`
	GeminiWeight float64 `json:"geminiWeight"`
	GrokWeight   float64 `json:"grokWeight"`
	GeminiPrompt string  `json:"geminiPrompt"`
	GrokPrompt   string  `json:"grokPrompt"`
	MaxFileSize  int     `json:"maxFileSize"` // KB
	MaxWidth     int     `json:"maxWidth"`    // px
	MaxHeight    int     `json:"maxHeight"`   // px
	OutputFormat string  `json:"outputFormat"`
}

// DefaultSettings returns the fully-populated fallback settings object.
func DefaultSettings() ProjectSettings {
	return ProjectSettings{
		ProjectTag:   "site",
		Confidence:   0.7,
		GeminiWeight: 1.0,
		GrokWeight:   0.0,
		GeminiPrompt: "default",
		GrokPrompt:   "default",
		MaxFileSize:  2048,
		MaxWidth:     1920,
		MaxHeight:    1080,
		OutputFormat: "pdf",
	}
}

// ParseSettingsJSON decodes a settings payload from its raw JSON string form
// and sanitizes it. Malformed JSON degrades to the full default settings
// object, it never fails the request.
func ParseSettingsJSON(raw string) ProjectSettings {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		log.Printf("settings: invalid settings JSON, using defaults: %v", err)
		return DefaultSettings()
	}
	return Sanitize(payload, DefaultSettings())
}

// Sanitize validates a loosely-typed settings payload field by field. Any
// missing, mistyped, or out-of-range value falls back to the corresponding
// default. No input can make Sanitize fail.
func Sanitize(raw map[string]interface{}, defaults ProjectSettings) ProjectSettings {
	s := defaults
	if raw == nil {
		return s
	}

	s.ProjectTag = sanitizeTag(raw["projectTag"], defaults.ProjectTag)
	s.Confidence = sanitizeFloat(raw["confidence"], MinConfidence, MaxConfidence, defaults.Confidence)
	s.GeminiWeight = sanitizeFloat(raw["geminiWeight"], MinModelWeight, MaxModelWeight, defaults.GeminiWeight)
	s.GrokWeight = sanitizeFloat(raw["grokWeight"], MinModelWeight, MaxModelWeight, defaults.GrokWeight)
	s.GeminiPrompt = sanitizePrompt(raw["geminiPrompt"], defaults.GeminiPrompt)
	s.GrokPrompt = sanitizePrompt(raw["grokPrompt"], defaults.GrokPrompt)
	s.MaxFileSize = sanitizeInt(raw["maxFileSize"], MinFileSizeKB, MaxFileSizeKB, defaults.MaxFileSize)
	s.MaxWidth = sanitizeInt(raw["maxWidth"], MinDimensionPx, MaxDimensionPx, defaults.MaxWidth)
	s.MaxHeight = sanitizeInt(raw["maxHeight"], MinDimensionPx, MaxDimensionPx, defaults.MaxHeight)

	// only pdf output is supported
	if v, ok := raw["outputFormat"].(string); ok && strings.TrimSpace(v) == "pdf" {
		s.OutputFormat = "pdf"
	} else {
		s.OutputFormat = defaults.OutputFormat
	}

	return s
}

// numberValue extracts a finite float from a loosely-typed JSON value.
// Numeric strings are accepted because form payloads carry numbers as text.
func numberValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func sanitizeFloat(v interface{}, min, max, def float64) float64 {
	f, ok := numberValue(v)
	if !ok || f < min || f > max {
		return def
	}
	return f
}

func sanitizeInt(v interface{}, min, max, def int) int {
	f, ok := numberValue(v)
	if !ok {
		return def
	}
	n := int(math.Round(f))
	if n < min || n > max {
		return def
	}
	return n
}

func sanitizeTag(v interface{}, def string) string {
	raw, ok := v.(string)
	if !ok {
		return def
	}
	filtered := FilterText(raw, false)
	if filtered == "" {
		return def
	}
	return filtered
}

// sanitizePrompt keeps custom model prompts opaque: they are trimmed but not
// character-filtered, an empty or non-string value falls back to the default.
func sanitizePrompt(v interface{}, def string) string {
	raw, ok := v.(string)
	if !ok {
		return def
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return def
	}
	return trimmed
}

// FilterText removes every rune outside the allow-list (alphanumerics,
// underscore, hyphen, space; plus ',', '.', '/' when location is true) and
// trims the result.
func FilterText(raw string, location bool) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == ' ':
			b.WriteRune(r)
		case location && (r == ',' || r == '.' || r == '/'):
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// SanitizeLocation filters a free-text location to its restricted character
// set. It returns nil when nothing usable remains.
func SanitizeLocation(raw string) *string {
	filtered := FilterText(raw, true)
	if filtered == "" {
		return nil
	}
	return &filtered
}
