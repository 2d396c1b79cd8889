package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the kind of message exchanged on the bus. The set is
// closed; Valid reports whether a value belongs to it.
type MessageType string

const (
	MessageTypeTaskRequest       MessageType = "task_request"
	MessageTypeTaskResponse      MessageType = "task_response"
	MessageTypeRetrievalRequest  MessageType = "retrieval_request"
	MessageTypeRetrievalResponse MessageType = "retrieval_response"
	MessageTypeToolRequest       MessageType = "tool_request"
	MessageTypeToolResponse      MessageType = "tool_response"
	MessageTypeOversightCheck    MessageType = "oversight_check"
	MessageTypeLearningUpdate    MessageType = "learning_update"
	MessageTypeSystemEvent       MessageType = "system_event"
)

// MessageTypes lists every valid MessageType.
var MessageTypes = []MessageType{
	MessageTypeTaskRequest,
	MessageTypeTaskResponse,
	MessageTypeRetrievalRequest,
	MessageTypeRetrievalResponse,
	MessageTypeToolRequest,
	MessageTypeToolResponse,
	MessageTypeOversightCheck,
	MessageTypeLearningUpdate,
	MessageTypeSystemEvent,
}

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	for _, known := range MessageTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Priority orders messages by urgency. The bus does not reorder by priority;
// it is carried for consumers.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns the lower-case name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Metadata carries routing and correlation details for a Message.
type Metadata struct {
	Timestamp     time.Time     `json:"timestamp"`
	SenderID      string        `json:"sender_id"`
	CorrelationID string        `json:"correlation_id"`
	Priority      Priority      `json:"priority"`
	TTL           time.Duration `json:"ttl,omitempty"`
}

// Message is the unit of bus traffic. Payload is opaque to the bus.
type Message struct {
	ID       string      `json:"id"`
	Type     MessageType `json:"type"`
	Payload  any         `json:"payload,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

// NewMessage constructs a Message with a fresh id, the current timestamp and
// a fresh correlation id. Override fields on the returned value as needed.
func NewMessage(msgType MessageType, senderID string, payload any) Message {
	return Message{
		ID:      NewID(),
		Type:    msgType,
		Payload: payload,
		Metadata: Metadata{
			Timestamp:     time.Now().UTC(),
			SenderID:      senderID,
			CorrelationID: NewID(),
			Priority:      PriorityMedium,
		},
	}
}

// NewReply builds a message that answers req: same correlation id, same priority.
func NewReply(req Message, msgType MessageType, senderID string, payload any) Message {
	reply := NewMessage(msgType, senderID, payload)
	if req.Metadata.CorrelationID != "" {
		reply.Metadata.CorrelationID = req.Metadata.CorrelationID
	}
	reply.Metadata.Priority = req.Metadata.Priority
	return reply
}

// NewID generates a new unique identifier for messages, tasks and records.
func NewID() string { return uuid.NewString() }

// TaskRequest is the payload of a task_request message.
type TaskRequest struct {
	Description string `json:"description"`
	ParentID    string `json:"parent_id,omitempty"`
}

// TaskResponse is the payload of a task_response message.
type TaskResponse struct {
	TaskID string     `json:"task_id"`
	Status TaskStatus `json:"status"`
	Result any        `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// RetrievalRequest is the payload of a retrieval_request message.
type RetrievalRequest struct {
	Query        string `json:"query"`
	Context      string `json:"context,omitempty"`
	MaxDocuments int    `json:"max_documents,omitempty"`
}

// RetrievalResponse is the payload of a retrieval_response message.
type RetrievalResponse struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// System event names published by agents.
const (
	EventAgentInitialized   = "agent_initialized"
	EventAgentShutdown      = "agent_shutdown"
	EventUnsupportedMessage = "unsupported_message"
)

// SystemEvent is the payload of a system_event message.
type SystemEvent struct {
	Event        string   `json:"event"`
	AgentID      string   `json:"agent_id"`
	Capabilities []string `json:"capabilities,omitempty"`
	Detail       string   `json:"detail,omitempty"`
}
