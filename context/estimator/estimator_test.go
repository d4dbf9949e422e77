package estimator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arrowctl/agentrun/context/estimator"
)

func TestText_Latin(t *testing.T) {
	// 16 latin chars at 4 chars/token = 4 tokens.
	assert.Equal(t, 4, estimator.Text("abcdefghijklmnop"))
}

func TestText_Empty(t *testing.T) {
	assert.Equal(t, 0, estimator.Text(""))
}

func TestText_CJKCostsMoreThanLatin(t *testing.T) {
	latinCost := estimator.Text("aaaa")
	cjkCost := estimator.Text("日本語")
	assert.Less(t, latinCost, cjkCost*2)
	assert.Greater(t, cjkCost, 0)
}

func TestImageBand(t *testing.T) {
	assert.Equal(t, 85, estimator.ImageBand(1024))
	assert.Equal(t, 170, estimator.ImageBand(20*1024))
	assert.Equal(t, 255, estimator.ImageBand(200*1024))
}

func TestToolUse(t *testing.T) {
	cost := estimator.ToolUse("search", map[string]any{"q": "go"})
	assert.Greater(t, cost, 5)
}

func TestToolsTotal_EmptyIsZero(t *testing.T) {
	assert.Equal(t, 0, estimator.ToolsTotal(nil))
}

func TestToolsTotal_NonEmptyAddsOverhead(t *testing.T) {
	one := estimator.ToolsTotal([]estimator.ToolSpec{{Name: "a", Schema: map[string]any{}}})
	assert.GreaterOrEqual(t, one, 20)
}

func TestMessageOverhead(t *testing.T) {
	assert.Equal(t, 10, estimator.Message(5))
}

func TestSystemPromptOverhead(t *testing.T) {
	assert.Equal(t, estimator.Text("hello")+10, estimator.SystemPrompt("hello"))
}
