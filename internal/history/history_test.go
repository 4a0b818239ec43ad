package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreKeepsMostRecentInOrder(t *testing.T) {
	t.Parallel()

	s := NewStore(3)
	for i := 1; i <= 5; i++ {
		s.Append("ROOM01", "npc-1", Entry{Role: FromMember, Speaker: "ana", Text: fmt.Sprint(i)})
	}

	got := s.Get("ROOM01", "npc-1")
	require.Len(t, got, 3)
	assert.Equal(t, "3", got[0].Text)
	assert.Equal(t, "5", got[2].Text)
}

func TestStoreAppendBatchEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	s := NewStore(DefaultCap)
	for i := 0; i < 9; i++ {
		s.Append("ROOM01", "npc-1", Entry{Role: FromMember, Text: fmt.Sprint(i)})
	}
	s.Append("ROOM01", "npc-1",
		Entry{Role: FromMember, Text: "a"},
		Entry{Role: FromRecipient, Text: "reply"},
	)

	got := s.Get("ROOM01", "npc-1")
	require.Len(t, got, DefaultCap)
	assert.Equal(t, "1", got[0].Text)
	assert.Equal(t, "reply", got[DefaultCap-1].Text)
}

func TestStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewStore(DefaultCap)
	s.Append("ROOM01", "npc-1", Entry{Text: "hi"})
	got := s.Get("ROOM01", "npc-1")
	got[0].Text = "changed"

	assert.Equal(t, "hi", s.Get("ROOM01", "npc-1")[0].Text)
}

func TestStoreIsKeyedByRoomAndRecipient(t *testing.T) {
	t.Parallel()

	s := NewStore(DefaultCap)
	s.Append("ROOM01", "npc-1", Entry{Text: "a"})
	s.Append("ROOM01", "npc-2", Entry{Text: "b"})
	s.Append("ROOM02", "npc-1", Entry{Text: "c"})

	s.Purge("ROOM01")

	assert.Empty(t, s.Get("ROOM01", "npc-1"))
	assert.Empty(t, s.Get("ROOM01", "npc-2"))
	assert.Len(t, s.Get("ROOM02", "npc-1"), 1)
}
