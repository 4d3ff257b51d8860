package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hardsite/helmetcheckbackend/models"
)

// ProjectRepository handles database operations for Project entities
type ProjectRepository struct {
	DB *gorm.DB
}

// NewProjectRepository creates a new instance of ProjectRepository
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{DB: db}
}

// Create inserts a new project record
func (r *ProjectRepository) Create(project *models.Project) error {
	if project.CreatedAt == 0 {
		project.CreatedAt = time.Now().Unix()
	}
	if project.Status == "" {
		project.Status = models.ProjectStatusPending
	}
	if project.ArchiveStatus == "" {
		project.ArchiveStatus = models.ArchiveStatusNotGenerated
	}

	err := r.DB.Create(project).Error
	if err != nil {
		return fmt.Errorf("failed to create project %s: %w", project.Name, err)
	}
	return nil
}

// GetByID retrieves a project with its images and their detections
func (r *ProjectRepository) GetByID(id uint) (*models.Project, error) {
	var project models.Project
	err := r.DB.Preload("Images.People").Preload("Images").First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get project by ID %d: %w", id, err)
	}
	return &project, nil
}

// ListAll retrieves all projects, newest first
func (r *ProjectRepository) ListAll() ([]models.Project, error) {
	var projects []models.Project
	err := r.DB.Order("created_at DESC").Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// UpdateStatus sets the processing status of a project
func (r *ProjectRepository) UpdateStatus(projectID uint, status string) error {
	result := r.DB.Model(&models.Project{}).Where("id = ?", projectID).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update status for project ID %d: %w", projectID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a project together with its images and their detections.
// The cascade runs inside one transaction so a partial delete cannot leave
// orphaned rows behind.
func (r *ProjectRepository) Delete(id uint) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var imageIDs []uint
		if err := tx.Model(&models.Image{}).Where("project_id = ?", id).Pluck("id", &imageIDs).Error; err != nil {
			return err
		}
		if len(imageIDs) > 0 {
			if err := tx.Where("image_id IN ?", imageIDs).Delete(&models.Person{}).Error; err != nil {
				return err
			}
			if err := tx.Where("project_id = ?", id).Delete(&models.Image{}).Error; err != nil {
				return err
			}
		}
		result := tx.Delete(&models.Project{}, id)
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
		return fmt.Errorf("failed to delete project ID %d: %w", id, err)
	}
	return nil
}

// RequestArchive marks a pending archive generation for the project
func (r *ProjectRepository) RequestArchive(projectID uint) error {
	updates := map[string]interface{}{
		"archive_status":       models.ArchiveStatusPending,
		"archive_requested_at": time.Now().Unix(),
		"archive_error":        gorm.Expr("NULL"),
	}
	result := r.DB.Model(&models.Project{}).Where("id = ?", projectID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to request archive for project ID %d: %w", projectID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkArchiveProcessing indicates archive generation is in progress
func (r *ProjectRepository) MarkArchiveProcessing(projectID uint) error {
	result := r.DB.Model(&models.Project{}).Where("id = ?", projectID).
		Update("archive_status", models.ArchiveStatusProcessing)
	if result.Error != nil {
		return fmt.Errorf("failed to mark archive processing for project ID %d: %w", projectID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetArchiveResult records the outcome of an archive generation task
func (r *ProjectRepository) SetArchiveResult(projectID uint, archivePath *string, archiveSize *int64, taskErr error) error {
	status := models.ArchiveStatusDone
	var errStr *string

	if taskErr != nil {
		status = models.ArchiveStatusError
		s := taskErr.Error()
		errStr = &s
	}

	updates := map[string]interface{}{
		"archive_status": status,
		"archive_error":  errStr,
	}
	if status == models.ArchiveStatusDone {
		updates["archive_path"] = archivePath
		updates["archive_size"] = archiveSize
		updates["archive_generated_at"] = time.Now().Unix()
	}

	result := r.DB.Model(&models.Project{}).Where("id = ?", projectID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set archive result for project ID %d: %w", projectID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
