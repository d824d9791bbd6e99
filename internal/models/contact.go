package models

// Contact is an entry in a user's personal address book.
type Contact struct {
	BaseModel

	OwnerID string `gorm:"type:uuid;not null;uniqueIndex:idx_contact_owner_email" json:"owner_id"`
	Name    string `gorm:"type:varchar(255);not null" json:"name"`
	Email   string `gorm:"type:varchar(255);not null;uniqueIndex:idx_contact_owner_email" json:"email"`
	Phone   string `gorm:"type:varchar(32)" json:"phone"`
	Notes   string `gorm:"type:text" json:"notes"`
}
