package util_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/percona/search-clone/util"
)

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	err := util.WithTimeout(context.Background(), 0, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.False(t, ok)

		return nil
	})
	assert.NoError(t, err)

	err = util.WithTimeout(context.Background(), time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()

		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
