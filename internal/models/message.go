package models

import "time"

// User is a member of the team directory.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one chat message, annotated with its extraction and the tasks it
// created or touched. Messages are append-only.
type Message struct {
	ID             string      `json:"id"`
	UserID         string      `json:"userId"`
	UserName       string      `json:"userName"`
	Content        string      `json:"content"`
	Timestamp      time.Time   `json:"timestamp"`
	ParsedData     *Extraction `json:"parsedData,omitempty"`
	RelatedTaskIDs []string    `json:"relatedTaskIds"`
}

// MessageType is the coarse intent of a chat message.
type MessageType string

const (
	MessageTask         MessageType = "task"
	MessageComment      MessageType = "comment"
	MessageQuestion     MessageType = "question"
	MessageObservation  MessageType = "observation"
	MessageConversation MessageType = "conversation"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTask, MessageComment, MessageQuestion, MessageObservation, MessageConversation:
		return true
	}
	return false
}

// Remark reports whether messages of this type are linked to existing work
// rather than creating it.
func (t MessageType) Remark() bool {
	return t == MessageComment || t == MessageQuestion || t == MessageObservation
}

// Action is what a task message asks to happen.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionComplete Action = "complete"
	ActionBlock    Action = "block"
	ActionHandoff  Action = "handoff"
	ActionComment  Action = "comment"
	ActionRename   Action = "rename"
	ActionRetag    Action = "retag"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionComplete, ActionBlock, ActionHandoff,
		ActionComment, ActionRename, ActionRetag:
		return true
	}
	return false
}

// Extraction sources.
const (
	SourceStructured    = "structured"
	SourceDeterministic = "deterministic"
)

// Extraction is the structured reading of a single chat message. It is
// produced once per message and stored verbatim in Message.ParsedData.
type Extraction struct {
	Confidence    float64     `json:"confidence"`
	IsTaskWorthy  bool        `json:"isTaskWorthy"`
	MessageType   MessageType `json:"messageType"`
	Action        Action      `json:"action,omitempty"`
	TaskTitle     string      `json:"taskTitle,omitempty"`
	TaskReference string      `json:"taskReference,omitempty"`
	CommentText   string      `json:"commentText,omitempty"`
	NewTaskTitle  string      `json:"newTaskTitle,omitempty"`
	NewTags       []string    `json:"newTags,omitempty"`
	Assignees     []string    `json:"assignees,omitempty"`
	Deadline      *time.Time  `json:"deadline,omitempty"`
	Status        Status      `json:"status,omitempty"`
	Priority      Priority    `json:"priority,omitempty"`
	WorkflowType  string      `json:"workflowType,omitempty"`
	BlockedBy     string      `json:"blockedBy,omitempty"`
	BatchItems    []string    `json:"batchItems,omitempty"`
	Metadata      Metadata    `json:"metadata,omitempty"`
	Suggestions   []string    `json:"suggestions,omitempty"`
	Reasoning     string      `json:"reasoning,omitempty"`
	Source        string      `json:"source,omitempty"`
}

// TaskNameCorrection records a user's fix to a generated task name or tag set.
type TaskNameCorrection struct {
	ID             string    `json:"id"`
	OriginalTitle  string    `json:"originalTitle"`
	CorrectedTitle string    `json:"correctedTitle"`
	WorkflowType   string    `json:"workflowType"`
	OriginalTags   []string  `json:"originalTags"`
	CorrectedTags  []string  `json:"correctedTags"`
	UserMessage    string    `json:"userMessage"`
	CreatedAt      time.Time `json:"createdAt"`
}
