package models

import "time"

// TargetKind names the kind of record a comment or typing row is attached to.
type TargetKind string

const (
	TargetExpense TargetKind = "expense"
	TargetTask    TargetKind = "task"
)

// Comment is a message on an expense or task. Replies nest one level deep.
type Comment struct {
	BaseModel

	TargetKind TargetKind `gorm:"type:varchar(20);not null;index:idx_comment_target" json:"target_kind"`
	TargetID   string     `gorm:"type:uuid;not null;index:idx_comment_target" json:"target_id"`
	AuthorID   string     `gorm:"type:uuid;not null;index" json:"author_id"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	IsEdited   bool       `gorm:"not null;default:false" json:"is_edited"`
	ParentID   *string    `gorm:"type:uuid;index" json:"parent_id"`

	Author  *Collaborator `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Replies []Comment     `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
}

// TypingStatus is the latest typing state of a collaborator on a target.
type TypingStatus struct {
	BaseModel

	TargetKind     TargetKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_typing_target_collaborator" json:"target_kind"`
	TargetID       string     `gorm:"type:uuid;not null;uniqueIndex:idx_typing_target_collaborator" json:"target_id"`
	CollaboratorID string     `gorm:"type:uuid;not null;uniqueIndex:idx_typing_target_collaborator" json:"collaborator_id"`
	IsTyping       bool       `gorm:"not null;default:false" json:"is_typing"`
	LastActivity   time.Time  `gorm:"index" json:"last_activity"`

	Collaborator *Collaborator `gorm:"foreignKey:CollaboratorID" json:"collaborator,omitempty"`
}
