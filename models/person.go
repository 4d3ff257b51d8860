package models

// Person represents a single person detection within one image using GORM.
// It corresponds to the 'people' table. PersonIdx is assigned by the detector
// and is scoped to its image, it is not globally unique.
type Person struct {
	ID               uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	ImageID          uint    `gorm:"not null;index" json:"image_id"`
	PersonIdx        int     `gorm:"not null" json:"person_id"`
	PersonConfidence float64 `gorm:"not null" json:"person_confidence"` // 0-1 after normalization
	HelmetConfidence float64 `gorm:"not null" json:"helmet_confidence"` // 0-1 after normalization
	HasHelmet        bool    `gorm:"not null" json:"has_helmet"`
	PersonBox        string  `gorm:"not null" json:"person_box"`  // JSON [ymin,xmin,ymax,xmax] in 0-1000 coordinates
	HelmetBox        *string `gorm:"" json:"helmet_box,omitempty"` // Nullable, always null when HasHelmet is false
	CreatedAt        int64   `gorm:"not null" json:"created_at"`  // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Person) TableName() string {
	return "people"
}
