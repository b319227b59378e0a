package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue(t *testing.T) {
	q := NewQueue(2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		q.Notify(ctx, Notification{Level: LevelError, Message: fmt.Sprintf("m%d", i)})
	}

	got := q.Drain()
	if assert.Len(t, got, 2) {
		assert.Equal(t, "m1", got[0].Message)
		assert.Equal(t, "m2", got[1].Message)
		assert.False(t, got[0].At.IsZero())
	}
	assert.Empty(t, q.Drain())
}
