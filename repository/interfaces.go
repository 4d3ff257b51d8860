package repository

import (
	"github.com/hardsite/helmetcheckbackend/models"
)

// ProjectRepositoryInterface defines the methods for project data operations
type ProjectRepositoryInterface interface {
	Create(project *models.Project) error
	GetByID(id uint) (*models.Project, error)
	ListAll() ([]models.Project, error)
	UpdateStatus(projectID uint, status string) error
	Delete(id uint) error

	// archive generation lifecycle
	RequestArchive(projectID uint) error
	MarkArchiveProcessing(projectID uint) error
	SetArchiveResult(projectID uint, archivePath *string, archiveSize *int64, taskErr error) error
}

// ImageRepositoryInterface defines the methods for image data operations
type ImageRepositoryInterface interface {
	Create(image *models.Image) error
	GetByID(id uint) (*models.Image, error)
	ListByProjectID(projectID uint) ([]models.Image, error)
	Delete(id uint) error
}

// PersonRepositoryInterface defines the methods for person detection data operations
type PersonRepositoryInterface interface {
	Create(person *models.Person) error
	ListByImageID(imageID uint) ([]models.Person, error)
	CountByProjectID(projectID uint) (int64, error)
}
