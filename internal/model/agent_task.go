package model

import "time"

// AgentTask is one request to run an agent against input text.
type AgentTask struct {
	BaseModel
	AgentID    int        `gorm:"not null;index" json:"agent"`
	Agent      Agent      `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"-"`
	OwnerID    int        `gorm:"not null;index" json:"owner"`
	InputText  string     `gorm:"type:text;not null" json:"input_text"`
	OutputText string     `gorm:"type:text" json:"output_text"`
	Status     string     `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// TableName specifies the table name for AgentTask
func (AgentTask) TableName() string {
	return "agent_tasks"
}

// Task status constants. Transitions are monotonic:
// pending -> running -> {completed, failed}.
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	return status == TaskStatusCompleted || status == TaskStatusFailed
}

// ResourceOwnerID implements the authorization Ownable contract
func (t *AgentTask) ResourceOwnerID() int {
	return t.OwnerID
}
