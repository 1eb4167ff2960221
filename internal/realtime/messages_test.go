package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, "user:42", UserTopic(42))
	assert.Equal(t, "conversation:abc123", ConversationTopic("abc123"))
}

func TestErrInvalidMessage(t *testing.T) {
	msg := ErrInvalidMessage(-1)
	assert.Zero(t, msg.Id, "unparseable messages carry no correlation id")
	assert.Equal(t, 400, msg.Response.ResponseCode)

	msg = ErrInvalidMessage(7)
	assert.Equal(t, 7, msg.Id)
}

func TestNoErrOK(t *testing.T) {
	msg := NoErrOK(3)
	assert.Equal(t, 3, msg.Id)
	assert.Equal(t, 200, msg.Response.ResponseCode)
	assert.Empty(t, msg.Response.Error)
}
