package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetActivationQueues(t *testing.T) {
	queues := GetActivationQueues()

	require.NotEmpty(t, queues, "queues list should not be empty")

	first := queues[0]
	assert.Equal(t, "referral.credit.owed", first.QueueName)
	assert.Equal(t, "credit_owed", first.RoutingKey)

	seen := map[string]bool{}
	for _, q := range queues {
		assert.Falsef(t, seen[q.QueueName], "duplicate queue name: %s", q.QueueName)
		seen[q.QueueName] = true
	}
}
