package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage(MessageTypeTaskRequest, "agent-1", TaskRequest{Description: "do it"})

	assert.NotEmpty(t, msg.ID)
	assert.NotEmpty(t, msg.Metadata.CorrelationID)
	assert.False(t, msg.Metadata.Timestamp.IsZero())
	assert.Equal(t, "agent-1", msg.Metadata.SenderID)
	assert.Equal(t, PriorityMedium, msg.Metadata.Priority)
}

func TestNewMessage_IDUniqueness(t *testing.T) {
	a := NewMessage(MessageTypeSystemEvent, "x", nil)
	b := NewMessage(MessageTypeSystemEvent, "x", nil)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Metadata.CorrelationID, b.Metadata.CorrelationID)
}

func TestNewReply_KeepsCorrelation(t *testing.T) {
	req := NewMessage(MessageTypeTaskRequest, "caller", nil)
	req.Metadata.Priority = PriorityCritical

	reply := NewReply(req, MessageTypeTaskResponse, "worker", TaskResponse{TaskID: "t1"})

	assert.Equal(t, req.Metadata.CorrelationID, reply.Metadata.CorrelationID)
	assert.Equal(t, PriorityCritical, reply.Metadata.Priority)
	assert.NotEqual(t, req.ID, reply.ID)
}

func TestMessageType_Valid(t *testing.T) {
	for _, mt := range MessageTypes {
		assert.True(t, mt.Valid(), string(mt))
	}
	assert.False(t, MessageType("bogus").Valid())
}

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "low", PriorityLow.String())
	assert.Equal(t, "critical", PriorityCritical.String())
	assert.Equal(t, "priority(9)", Priority(9).String())
}
