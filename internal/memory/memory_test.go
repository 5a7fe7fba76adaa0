package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppendTurnAddsTwoEntries(t *testing.T) {
	s := New(0)
	s.AppendTurn("sess1",
		Entry{Role: RoleUser, Content: "hi", Timestamp: time.Now()},
		Entry{Role: RoleAssistant, Content: "hello", Timestamp: time.Now()},
	)
	recent := s.Recent("sess1", 10)
	assert.Len(t, recent, 2)
	assert.Equal(t, RoleUser, recent[0].Role)
	assert.Equal(t, RoleAssistant, recent[1].Role)
}

func TestCappedAt50(t *testing.T) {
	s := New(50)
	for i := 0; i < 30; i++ {
		s.AppendTurn("sess1",
			Entry{Role: RoleUser, Content: fmt.Sprintf("msg-%d", i)},
			Entry{Role: RoleAssistant, Content: fmt.Sprintf("reply-%d", i)},
		)
	}
	recent := s.Recent("sess1", 1000)
	assert.Len(t, recent, 50)
	// oldest dropped: the earliest surviving user message should not be msg-0
	assert.NotEqual(t, "msg-0", recent[0].Content)
}

func TestClearRemovesSession(t *testing.T) {
	s := New(0)
	s.Append("sess1", Entry{Role: RoleUser, Content: "hi"})
	s.Clear("sess1")
	assert.Empty(t, s.Recent("sess1", 10))
}

func TestActiveSessions(t *testing.T) {
	s := New(0)
	s.Append("a", Entry{Role: RoleUser})
	s.Append("b", Entry{Role: RoleUser})
	ids := s.ActiveSessions()
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestDefaultCapacityWhenZero(t *testing.T) {
	s := New(0)
	assert.Equal(t, 50, s.capacity)
}
