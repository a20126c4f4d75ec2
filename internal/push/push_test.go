package push

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthreach-server/internal/logger"
)

func TestChunk(t *testing.T) {
	tokens := make([]string, 1201)
	batches := chunk(tokens, maxMulticastTokens)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 500)
	assert.Len(t, batches[1], 500)
	assert.Len(t, batches[2], 201)
	assert.Empty(t, chunk(nil, maxMulticastTokens))
}

func TestLogSenderReportsDelivered(t *testing.T) {
	s := NewLogSender(logger.Discard())
	res, err := s.Send(context.Background(), []string{"a", "b"}, Message{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Empty(t, res.InvalidTokens)
}
