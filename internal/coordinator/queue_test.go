package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkQueue(t *testing.T) {
	q := newWorkQueue()

	assert.True(t, q.push("ORG"))
	assert.True(t, q.push("AAA"))
	assert.False(t, q.push("ORG"))
	assert.Equal(t, 2, q.len())
	assert.Equal(t, []string{"ORG", "AAA"}, q.snapshot())

	key, ok := q.pop()
	assert.True(t, ok)
	assert.Equal(t, "ORG", key)
	assert.False(t, q.contains("ORG"))

	// popped keys can be queued again
	assert.True(t, q.push("ORG"))
	assert.Equal(t, []string{"AAA", "ORG"}, q.snapshot())

	q.pop()
	q.pop()
	_, ok = q.pop()
	assert.False(t, ok)
}
