package models

import "time"

// TaskStatus is the board column of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

// Task is a unit of work inside an event. AssigneeID references a User.
type Task struct {
	BaseModel

	EventID     string     `gorm:"type:uuid;not null;index" json:"event_id"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	AssigneeID  *string    `gorm:"type:uuid;index" json:"assignee_id"`
	CreatedByID string     `gorm:"type:uuid;not null" json:"created_by_id"`
	DueDate     *time.Time `gorm:"index" json:"due_date"`
	Status      TaskStatus `gorm:"type:varchar(20);not null;default:'TODO';index" json:"status"`

	Assignee  *User `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	CreatedBy *User `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}
