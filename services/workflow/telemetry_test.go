package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLog_Format(t *testing.T) {
	l := NewRunLog(0)
	l.now = func() time.Time { return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC) }

	l.Add("Initiating [%s]", "Flash Orchestrator")

	assert.Equal(t, []string{"[15:04:05] Initiating [Flash Orchestrator]"}, l.Lines())
}

func TestRunLog_KeepsNewestLines(t *testing.T) {
	l := NewRunLog(DefaultLogSize)
	for i := 0; i < 20; i++ {
		l.Add("line %d", i)
	}

	lines := l.Lines()
	require.Len(t, lines, DefaultLogSize)
	assert.Contains(t, lines[0], "line 4")
	assert.Contains(t, lines[DefaultLogSize-1], fmt.Sprintf("line %d", 19))
}

func TestRunLog_LinesIsCopy(t *testing.T) {
	l := NewRunLog(2)
	l.Add("a")

	lines := l.Lines()
	lines[0] = "mutated"

	assert.Contains(t, l.Lines()[0], "a")

	l.Clear()
	assert.Empty(t, l.Lines())
}
