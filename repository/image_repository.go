package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hardsite/helmetcheckbackend/models"
)

// ImageRepository handles database operations for Image entities
type ImageRepository struct {
	DB *gorm.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

// Create inserts a new image record
func (r *ImageRepository) Create(image *models.Image) error {
	if image.CreatedAt == 0 {
		image.CreatedAt = time.Now().Unix()
	}
	err := r.DB.Create(image).Error
	if err != nil {
		return fmt.Errorf("failed to create image %s for project ID %d: %w", image.FileName, image.ProjectID, err)
	}
	return nil
}

// GetByID retrieves an image by its ID, preloading its detections
func (r *ImageRepository) GetByID(id uint) (*models.Image, error) {
	var image models.Image
	err := r.DB.Preload("People").First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by ID %d: %w", id, err)
	}
	return &image, nil
}

// ListByProjectID retrieves all images of a project, ordered by insertion
func (r *ImageRepository) ListByProjectID(projectID uint) ([]models.Image, error) {
	var images []models.Image
	err := r.DB.Preload("People").Where("project_id = ?", projectID).Order("id ASC").Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images for project ID %d: %w", projectID, err)
	}
	return images, nil
}

// Delete removes an image and its detections inside one transaction
func (r *ImageRepository) Delete(id uint) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ?", id).Delete(&models.Person{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Image{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete image ID %d: %w", id, err)
	}
	return nil
}
