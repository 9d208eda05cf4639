package quota

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubCounter struct {
	n   int
	err error
}

func (s *stubCounter) GetListCount(context.Context, string) (int, error) { return s.n, s.err }

func TestTracker_Local(t *testing.T) {
	tr := New(2, "", nil, nil)
	ctx := context.Background()
	assert.False(t, tr.Reached(ctx))
	tr.Record()
	assert.False(t, tr.Reached(ctx))
	tr.Record()
	assert.True(t, tr.Reached(ctx))
	assert.Equal(t, 2, tr.Processed())
}

func TestTracker_PollsList(t *testing.T) {
	c := &stubCounter{n: 2}
	tr := New(3, "L1", c, nil)
	ctx := context.Background()

	tr.Record()
	tr.Record()
	tr.Record()
	assert.False(t, tr.Reached(ctx), "stored count wins over local count")

	c.n = 3
	assert.True(t, tr.Reached(ctx))
}

func TestTracker_FallsBackOnError(t *testing.T) {
	c := &stubCounter{err: errors.New("down")}
	tr := New(1, "L1", c, nil)
	ctx := context.Background()
	assert.False(t, tr.Reached(ctx))
	tr.Record()
	assert.True(t, tr.Reached(ctx))
}
