package pipeline

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateProjectName(t *testing.T) {
	name := GenerateProjectName("tower-7")
	assert.Regexp(t, regexp.MustCompile(`^\d{6}-\d{6}-tower-7-[0-9a-f]{8}$`), name)
}

func TestGenerateProjectNameUnique(t *testing.T) {
	a := GenerateProjectName("site")
	b := GenerateProjectName("site")
	assert.NotEqual(t, a, b)
}
