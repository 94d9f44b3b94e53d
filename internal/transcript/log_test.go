package transcript

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/fbchat/internal/models"
)

func TestAppend_AssignsIncreasingSeq(t *testing.T) {
	l := New()

	a := l.Append(models.OriginBot, "How was support?")
	b := l.Append(models.OriginUser, "Rating: ⭐⭐⭐⭐⭐")
	c := l.Append(models.OriginSystem, "Error: boom")

	assert.Equal(t, uint64(1), a.Seq)
	assert.Equal(t, uint64(2), b.Seq)
	assert.Equal(t, uint64(3), c.Seq)
	assert.False(t, a.At.IsZero())

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, models.OriginBot, entries[0].Origin)
	assert.Equal(t, "Error: boom", entries[2].Text)
}

func TestEntries_ReturnsCopy(t *testing.T) {
	l := New()
	l.Append(models.OriginBot, "q1")

	entries := l.Entries()
	entries[0].Text = "mutated"

	assert.Equal(t, "q1", l.Entries()[0].Text)
}

func TestReset_KeepsSequenceMonotonic(t *testing.T) {
	l := New()
	l.Append(models.OriginBot, "one")
	l.Append(models.OriginBot, "two")

	l.Reset()
	assert.Equal(t, 0, l.Len())

	m := l.Append(models.OriginBot, "three")
	assert.Equal(t, uint64(3), m.Seq)
	assert.Equal(t, []models.Message{m}, l.Since(0))
}

func TestSince(t *testing.T) {
	l := New()
	for _, s := range []string{"a", "b", "c", "d"} {
		l.Append(models.OriginBot, s)
	}

	got := l.Since(2)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Text)
	assert.Equal(t, "d", got[1].Text)

	assert.Nil(t, l.Since(4))
	assert.Len(t, l.Since(0), 4)
}

func TestAppend_ConcurrentWritersStayOrdered(t *testing.T) {
	l := New()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Append(models.OriginUser, "x")
			}
		}()
	}
	wg.Wait()

	entries := l.Entries()
	require.Len(t, entries, 800)
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Seq, entries[i-1].Seq)
	}
}
