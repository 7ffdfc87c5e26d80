package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_RequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewManager(nil, nil, Config{})
	require.ErrorIs(t, err, ErrPoolRequired)
}

func TestParseCronSchedule(t *testing.T) {
	t.Parallel()

	schedule, err := parseCronSchedule("*/5 * * * *")
	require.NoError(t, err)

	at := time.Date(2026, time.March, 10, 12, 2, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 10, 12, 5, 0, 0, time.UTC), schedule.Next(at))

	_, err = parseCronSchedule("not-a-schedule")
	require.Error(t, err)
}

func TestJobKinds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mailcraft:send", SendArgs{}.Kind())
	assert.Equal(t, "mailcraft:periodic", periodicArgs{}.Kind())
}
