package models

// Image represents a stored site photo using GORM.
// It corresponds to the 'images' table and is owned by exactly one Project.
type Image struct {
	ID            uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID     uint    `gorm:"not null;index" json:"project_id"`
	TakenAt       *int64  `gorm:"index" json:"taken_at,omitempty"` // Nullable, epoch milliseconds
	Location      *string `gorm:"" json:"location,omitempty"`      // Nullable, sanitized free text
	FileName      string  `gorm:"not null" json:"file_name"`
	ThumbFileName string  `gorm:"not null" json:"thumb_file_name"`
	CreatedAt     int64   `gorm:"not null" json:"created_at"` // Unix timestamp

	// Relationships
	People []Person `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE" json:"people,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Image) TableName() string {
	return "images"
}
