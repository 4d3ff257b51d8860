package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hardsite/helmetcheckbackend/models"
)

// PersonRepository handles database operations for Person detection entities
type PersonRepository struct {
	DB *gorm.DB
}

// NewPersonRepository creates a new instance of PersonRepository
func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{DB: db}
}

// Create inserts a new person detection record
func (r *PersonRepository) Create(person *models.Person) error {
	if person.CreatedAt == 0 {
		person.CreatedAt = time.Now().Unix()
	}
	err := r.DB.Create(person).Error
	if err != nil {
		return fmt.Errorf("failed to create person %d for image ID %d: %w", person.PersonIdx, person.ImageID, err)
	}
	return nil
}

// ListByImageID retrieves all detections for an image, in detector order
func (r *PersonRepository) ListByImageID(imageID uint) ([]models.Person, error) {
	var people []models.Person
	err := r.DB.Where("image_id = ?", imageID).Order("person_idx ASC").Find(&people).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list people for image ID %d: %w", imageID, err)
	}
	return people, nil
}

// CountByProjectID counts detections across all images of a project
func (r *PersonRepository) CountByProjectID(projectID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&models.Person{}).
		Joins("JOIN images ON images.id = people.image_id").
		Where("images.project_id = ?", projectID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count people for project ID %d: %w", projectID, err)
	}
	return count, nil
}
