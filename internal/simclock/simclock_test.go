package simclock

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactorOneReturnsBase(t *testing.T) {
	m := clock.NewMock()
	assert.Same(t, m, New(m, 1, time.Time{}))
}

func TestScaledNow(t *testing.T) {
	m := clock.NewMock()
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(m, 10, epoch)
	assert.Equal(t, epoch, c.Now())
	m.Add(3 * time.Second)
	assert.Equal(t, epoch.Add(30*time.Second), c.Now())
	assert.Equal(t, 30*time.Second, c.Since(epoch))
}

func TestScaledTicker(t *testing.T) {
	m := clock.NewMock()
	c := New(m, 60, time.Time{})
	tk := c.Ticker(time.Minute)
	defer tk.Stop()
	m.Add(time.Second)
	select {
	case <-tk.C:
	default:
		require.Fail(t, "ticker did not fire after one base second")
	}
	tm := c.Timer(2 * time.Minute)
	m.Add(time.Second)
	select {
	case <-tm.C:
		require.Fail(t, "timer fired early")
	default:
	}
	m.Add(time.Second)
	select {
	case <-tm.C:
	default:
		require.Fail(t, "timer did not fire")
	}
}
