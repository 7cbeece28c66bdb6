package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionForRisk(t *testing.T) {
	tests := []struct {
		score int
		want  Action
	}{
		{0, ActionAllow},
		{19, ActionAllow},
		{20, ActionMonitor},
		{49, ActionMonitor},
		{50, ActionEnhancedDD},
		{79, ActionEnhancedDD},
		{80, ActionHold},
		{99, ActionHold},
		{100, ActionBlock},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ActionForRisk(tt.score), "score %d", tt.score)
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, ClampScore(-5))
	assert.Equal(t, 100, ClampScore(250))
	assert.Equal(t, 42, ClampScore(42))
}

func TestRequiresCase(t *testing.T) {
	assert.False(t, RequiresCase(ActionAllow))
	assert.False(t, RequiresCase(ActionMonitor))
	assert.True(t, RequiresCase(ActionEnhancedDD))
	assert.True(t, RequiresCase(ActionHold))
	assert.True(t, RequiresCase(ActionBlock))
}
