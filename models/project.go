package models

// Project status values. A project starts as pending and is moved to a final
// status once its upload batch has been fully processed.
const (
	ProjectStatusPending  = "pending"
	ProjectStatusReady    = "ready"
	ProjectStatusNoPeople = "no_people"
	ProjectStatusError    = "error"
)

// Archive generation status values for a project's ZIP export.
const (
	ArchiveStatusNotGenerated = "not_generated"
	ArchiveStatusPending      = "pending"
	ArchiveStatusProcessing   = "processing"
	ArchiveStatusDone         = "done"
	ArchiveStatusError        = "error"
)

// Project represents one upload batch of site photos using GORM.
// It corresponds to the 'projects' table.
type Project struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"not null;uniqueIndex" json:"name"`
	Settings string `gorm:"not null" json:"settings"` // sanitized settings, JSON-encoded
	Status   string `gorm:"not null;default:pending" json:"status"`

	ArchivePath        *string `gorm:"" json:"archive_path,omitempty"`
	ArchiveSize        *int64  `gorm:"" json:"archive_size,omitempty"`
	ArchiveStatus      string  `gorm:"not null;default:not_generated" json:"archive_status"`
	ArchiveRequestedAt *int64  `gorm:"" json:"archive_requested_at,omitempty"` // Unix timestamp
	ArchiveGeneratedAt *int64  `gorm:"" json:"archive_generated_at,omitempty"` // Unix timestamp
	ArchiveError       *string `gorm:"" json:"archive_error,omitempty"`

	CreatedAt int64 `gorm:"not null" json:"created_at"` // Unix timestamp

	// Relationships
	Images []Image `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Project) TableName() string {
	return "projects"
}
