package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/hardsite/helmetcheckbackend/config"
	"github.com/hardsite/helmetcheckbackend/database"
	"github.com/hardsite/helmetcheckbackend/media"
	"github.com/hardsite/helmetcheckbackend/models"
	"github.com/hardsite/helmetcheckbackend/pipeline"
	"github.com/hardsite/helmetcheckbackend/repository"
	"github.com/hardsite/helmetcheckbackend/settings"
	"github.com/hardsite/helmetcheckbackend/workers"
)

// ProjectHandler serves the project API: batch upload, listing, detail,
// deletion, and archive generation.
type ProjectHandler struct {
	DB           *gorm.DB
	Cfg          config.Config
	Projects     repository.ProjectRepositoryInterface
	Writer       *media.Writer
	Store        media.Store
	Orchestrator *pipeline.Orchestrator
	ArchiveProc  *workers.ArchiveProcessor
}

// projectListEntry is one row of the project list, a project joined with its
// image and person counts.
type projectListEntry struct {
	models.Project
	ImageCount  int64 `json:"image_count"`
	PersonCount int64 `json:"person_count"`
}

func (ph *ProjectHandler) getProjectByParam(r *http.Request) (*models.Project, error) {
	idStr := chi.URLParam(r, "project_id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid project ID '%s': %w", idStr, gorm.ErrRecordNotFound)
	}
	return ph.Projects.GetByID(uint(id))
}

// UploadProject accepts a multipart batch of site photos, runs the detection
// pipeline, and responds with the per-image results.
func (ph *ProjectHandler) UploadProject(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(ph.Cfg.MaxUploadSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart request: " + err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	var rawSettings string
	if vals := r.MultipartForm.Value["settings"]; len(vals) > 0 {
		rawSettings = vals[0]
	}
	projSettings := settings.ParseSettingsJSON(rawSettings)

	uploads := pipeline.ExtractUploads(r.MultipartForm)
	if len(uploads) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No valid images found in request"})
		return
	}

	result, err := ph.Orchestrator.Run(r.Context(), projSettings, uploads)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoImages) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No valid images found in request"})
			return
		}
		log.Printf("Error processing upload batch: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to process upload"})
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ListProjects returns all projects, newest first, with image and person counts
func (ph *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := ph.Projects.ListAll()
	if err != nil {
		log.Printf("Error listing projects: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve projects"})
		return
	}

	summaries, err := database.ProjectSummaries(ph.DB)
	if err != nil {
		log.Printf("Error computing project summaries: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve project statistics"})
		return
	}

	entries := make([]projectListEntry, 0, len(projects))
	for _, p := range projects {
		entry := projectListEntry{Project: p}
		if s, ok := summaries[p.ID]; ok {
			entry.ImageCount = s.ImageCount
			entry.PersonCount = s.PersonCount
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetProject returns one project with its images and detected people
func (ph *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := ph.getProjectByParam(r)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Project not found"})
		} else {
			log.Printf("Error getting project: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve project"})
		}
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// DeleteProject removes the project rows and then cleans up stored files.
// File removal is best effort; the database delete is authoritative.
func (ph *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	project, err := ph.getProjectByParam(r)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Project not found"})
		} else {
			log.Printf("Error finding project for delete: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to find project for delete"})
		}
		return
	}

	if err := ph.Projects.Delete(project.ID); err != nil {
		log.Printf("Error deleting project %d: %v", project.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete project"})
		return
	}

	for _, img := range project.Images {
		ph.Writer.DeletePair(img.FileName, img.ThumbFileName)
	}
	if project.ArchivePath != nil {
		if err := ph.Store.Delete(*project.ArchivePath); err != nil {
			log.Printf("Error deleting archive file for project %d: %v", project.ID, err)
		}
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// RequestProjectArchive queues ZIP generation for a project's originals
func (ph *ProjectHandler) RequestProjectArchive(w http.ResponseWriter, r *http.Request) {
	project, err := ph.getProjectByParam(r)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Project not found"})
		} else {
			log.Printf("Error finding project for archive request: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to find project"})
		}
		return
	}

	if len(project.Images) == 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Project has no stored images to archive"})
		return
	}
	if project.ArchiveStatus == models.ArchiveStatusPending || project.ArchiveStatus == models.ArchiveStatusProcessing {
		writeJSON(w, http.StatusAccepted, map[string]string{"archive_status": project.ArchiveStatus})
		return
	}

	if err := ph.Projects.RequestArchive(project.ID); err != nil {
		log.Printf("Error requesting archive for project %d: %v", project.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to request archive"})
		return
	}

	if !ph.ArchiveProc.QueueJob(workers.ArchiveJob{ProjectID: project.ID}) {
		log.Printf("Archive job for project %d not queued (already pending or queue full)", project.ID)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"archive_status": models.ArchiveStatusPending})
}

// DownloadProjectArchive serves the generated ZIP once it is ready
func (ph *ProjectHandler) DownloadProjectArchive(w http.ResponseWriter, r *http.Request) {
	project, err := ph.getProjectByParam(r)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Project not found"})
		} else {
			log.Printf("Error finding project for archive download: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to find project"})
		}
		return
	}

	switch project.ArchiveStatus {
	case models.ArchiveStatusDone:
		// fall through to serving below
	case models.ArchiveStatusPending, models.ArchiveStatusProcessing:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Archive generation still in progress", "archive_status": project.ArchiveStatus})
		return
	case models.ArchiveStatusError:
		msg := "Archive generation failed"
		if project.ArchiveError != nil {
			msg = *project.ArchiveError
		}
		writeJSON(w, http.StatusConflict, map[string]string{"error": msg, "archive_status": project.ArchiveStatus})
		return
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No archive has been generated for this project"})
		return
	}

	if project.ArchivePath == nil {
		log.Printf("Project %d archive marked done but has no path", project.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Archive record is inconsistent"})
		return
	}

	fullPath, err := ph.Store.GetFullPath(*project.ArchivePath)
	if err != nil {
		log.Printf("Error resolving archive path for project %d: %v", project.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to resolve archive file"})
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", project.Name+".zip"))
	w.Header().Set("Content-Type", "application/zip")
	http.ServeFile(w, r, fullPath)
}
