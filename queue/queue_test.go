package queue_test

import (
	"testing"
	"time"

	"panel-bridge/queue"

	"github.com/stretchr/testify/assert"
)

func TestPolicyDelaySchedule(t *testing.T) {
	policy := queue.Policy{
		MaxAttempts: 5,
		Backoff: []time.Duration{
			10 * time.Second, 30 * time.Second, time.Minute, 2 * time.Minute, 5 * time.Minute,
		},
	}

	assert.Equal(t, 10*time.Second, policy.Delay(1))
	assert.Equal(t, 30*time.Second, policy.Delay(2))
	assert.Equal(t, time.Minute, policy.Delay(3))
	assert.Equal(t, 2*time.Minute, policy.Delay(4))
	assert.Equal(t, 5*time.Minute, policy.Delay(5))
}

func TestPolicyDelayClampsToLastEntry(t *testing.T) {
	policy := queue.Policy{MaxAttempts: 3, Backoff: []time.Duration{15 * time.Second, 30 * time.Second}}

	assert.Equal(t, 30*time.Second, policy.Delay(7))
	assert.Equal(t, 15*time.Second, policy.Delay(0))
}

func TestPolicyDelayEmptySchedule(t *testing.T) {
	assert.Equal(t, time.Duration(0), queue.Policy{}.Delay(1))
}

func TestTaskLockKey(t *testing.T) {
	task := &queue.Task{ID: "evt-1", Type: "event.process"}
	assert.Equal(t, "event.process:evt-1", task.LockKey())
}
