package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/IggyCloud/eShop/platform/health"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	assert.Equal(t, health.StatusHealthy, pingCheck(fakePinger{})(context.Background()).Status)

	res := pingCheck(fakePinger{err: errors.New("connection refused")})(context.Background())
	assert.Equal(t, health.StatusUnhealthy, res.Status)
	assert.EqualError(t, res.Err, "connection refused")
}
