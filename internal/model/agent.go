package model

// Agent describes how to prompt a model backend. Each agent belongs to
// exactly one user; the owner is fixed at creation time.
type Agent struct {
	BaseModel
	OwnerID     int     `gorm:"not null;index" json:"owner"`
	Owner       User    `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Name        string  `gorm:"type:varchar(120);not null" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	Model       string  `gorm:"type:varchar(50);default:'gpt-4o-mini'" json:"model"`
	Temperature float64 `gorm:"default:0.7" json:"temperature"`
}

// TableName specifies the table name for Agent
func (Agent) TableName() string {
	return "agents"
}

// SystemPrompt returns the prompt sent as the system message when running
// a task, falling back to a default when the agent has no description.
func (a *Agent) SystemPrompt() string {
	if a.Description == "" {
		return "You are an assistant."
	}
	return a.Description
}

// ResourceOwnerID implements the authorization Ownable contract
func (a *Agent) ResourceOwnerID() int {
	return a.OwnerID
}
