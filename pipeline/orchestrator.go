package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hardsite/helmetcheckbackend/detection"
	"github.com/hardsite/helmetcheckbackend/models"
	"github.com/hardsite/helmetcheckbackend/realtime"
	"github.com/hardsite/helmetcheckbackend/repository"
	"github.com/hardsite/helmetcheckbackend/settings"
)

// ErrNoImages is returned when a batch carries no usable image records.
var ErrNoImages = errors.New("no valid images in batch")

// Detector enumerates people and helmet usage in one image.
type Detector interface {
	Detect(ctx context.Context, img []byte, mediaType, name string, threshold float64) []detection.Person
}

// Saver persists an image and thumbnail pair under deterministic names.
type Saver interface {
	SavePair(projectName string, index int, image, thumb []byte, maxWidth, maxHeight int) (string, string, error)
}

// ImageResult reports the outcome of one image's pipeline.
type ImageResult struct {
	Index          int                `json:"index"`
	Success        bool               `json:"success"`
	ImageID        *uint              `json:"imageId,omitempty"`
	FileName       string             `json:"fileName,omitempty"`
	ThumbFileName  string             `json:"thumbFileName,omitempty"`
	PeopleDetected *int               `json:"peopleDetected,omitempty"`
	People         []detection.Person `json:"people,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// Summary aggregates a whole batch.
type Summary struct {
	TotalImages         int `json:"totalImages"`
	SuccessfulImages    int `json:"successfulImages"`
	FailedImages        int `json:"failedImages"`
	TotalPeopleDetected int `json:"totalPeopleDetected"`
}

// BatchResult is the full response for one processed upload batch.
type BatchResult struct {
	Success     bool                     `json:"success"`
	ProjectID   uint                     `json:"projectId"`
	ProjectName string                   `json:"projectName"`
	Status      string                   `json:"status"`
	Settings    settings.ProjectSettings `json:"settings"`
	Summary     Summary                  `json:"summary"`
	Results     []ImageResult            `json:"results"`
}

// Orchestrator runs the image intake pipeline: it creates the project, fans
// out per-image save and detect work, joins the results, and persists the
// outcome. Failure of one image never aborts its siblings.
type Orchestrator struct {
	Projects repository.ProjectRepositoryInterface
	Images   repository.ImageRepositoryInterface
	People   repository.PersonRepositoryInterface
	Writer   Saver
	Detector Detector
	Hub      *realtime.Hub // optional, progress events for connected clients

	// MaxConcurrentImages bounds the per-batch fan-out so large batches
	// cannot saturate the external detection API.
	MaxConcurrentImages int
}

// Run processes one upload batch. The only failures it propagates are an
// empty batch and a failed project creation; everything below that degrades
// to per-image or per-person results.
func (o *Orchestrator) Run(ctx context.Context, projSettings settings.ProjectSettings, uploads []Upload) (*BatchResult, error) {
	if len(uploads) == 0 {
		return nil, ErrNoImages
	}

	encoded, err := json.Marshal(projSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}

	project := &models.Project{
		Name:     GenerateProjectName(projSettings.ProjectTag),
		Settings: string(encoded),
		Status:   models.ProjectStatusPending,
	}
	if err := o.Projects.Create(project); err != nil {
		return nil, fmt.Errorf("failed to create project %s: %w", project.Name, err)
	}

	limit := o.MaxConcurrentImages
	if limit <= 0 {
		limit = 4
	}
	sem := make(chan struct{}, limit)

	results := make([]ImageResult, len(uploads))
	var wg sync.WaitGroup
	for i := range uploads {
		wg.Add(1)
		go func(idx int, up Upload) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = o.processImage(ctx, project, projSettings, idx, up)
		}(i, uploads[i])
	}
	wg.Wait()

	summary := Summary{TotalImages: len(results)}
	for _, res := range results {
		if res.Success {
			summary.SuccessfulImages++
			if res.PeopleDetected != nil {
				summary.TotalPeopleDetected += *res.PeopleDetected
			}
		} else {
			summary.FailedImages++
		}
	}

	status := batchStatus(summary)
	if err := o.Projects.UpdateStatus(project.ID, status); err != nil {
		log.Printf("pipeline: failed to update status of project %d to %s: %v", project.ID, status, err)
	}

	o.broadcast(realtime.Event{
		Type:      "project",
		Project:   project.Name,
		Status:    status,
		Timestamp: time.Now().Unix(),
	})

	return &BatchResult{
		Success:     true,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Status:      status,
		Settings:    projSettings,
		Summary:     summary,
		Results:     results,
	}, nil
}

// batchStatus decides the final project status: error when every image
// failed, ready when at least one person was detected, no_people otherwise.
func batchStatus(summary Summary) string {
	switch {
	case summary.FailedImages == summary.TotalImages:
		return models.ProjectStatusError
	case summary.TotalPeopleDetected > 0:
		return models.ProjectStatusReady
	default:
		return models.ProjectStatusNoPeople
	}
}

// processImage runs the save and detect paths of one image concurrently and
// joins them. A panic anywhere inside becomes a per-image failure record.
func (o *Orchestrator) processImage(ctx context.Context, project *models.Project, projSettings settings.ProjectSettings, idx int, up Upload) (res ImageResult) {
	res = ImageResult{Index: idx}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline: panic processing image %d of project %s: %v", idx, project.Name, r)
			res = ImageResult{Index: idx, Success: false, Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	var (
		join     sync.WaitGroup
		image    *models.Image
		saveErr  error
		fileName string
		thumb    string
		people   []detection.Person
	)

	join.Add(2)
	go func() {
		defer join.Done()
		fileName, thumb, saveErr = o.Writer.SavePair(project.Name, idx, up.Image, up.Thumb, projSettings.MaxWidth, projSettings.MaxHeight)
		if saveErr != nil {
			log.Printf("pipeline: storage failed for image %d of project %s: %v", idx, project.Name, saveErr)
			return
		}
		img := &models.Image{
			ProjectID:     project.ID,
			TakenAt:       up.TakenAt,
			Location:      up.Location,
			FileName:      fileName,
			ThumbFileName: thumb,
		}
		if err := o.Images.Create(img); err != nil {
			log.Printf("pipeline: image insert failed for index %d of project %s: %v", idx, project.Name, err)
			saveErr = err
			return
		}
		image = img
	}()
	go func() {
		defer join.Done()
		people = o.Detector.Detect(ctx, up.Image, up.ImageType, up.ImageName, projSettings.Confidence)
	}()
	join.Wait()

	if saveErr != nil || image == nil {
		// detections are never persisted for an image that failed to save
		res.Error = "failed to store image"
		o.broadcast(realtime.Event{
			Type: "image", Project: project.Name, Status: "error",
			Error: res.Error, Timestamp: time.Now().Unix(),
		})
		return res
	}

	kept := make([]detection.Person, 0, len(people))
	for _, p := range people {
		row, err := personRow(image.ID, p)
		if err != nil {
			log.Printf("pipeline: dropping person %d of image %d: %v", p.PersonID, image.ID, err)
			continue
		}
		if err := o.People.Create(row); err != nil {
			log.Printf("pipeline: dropping person %d of image %d: %v", p.PersonID, image.ID, err)
			continue
		}
		kept = append(kept, p)
	}

	count := len(kept)
	res.Success = true
	res.ImageID = &image.ID
	res.FileName = fileName
	res.ThumbFileName = thumb
	res.PeopleDetected = &count
	res.People = kept

	o.broadcast(realtime.Event{
		Type: "image", Project: project.Name, Status: "done",
		Timestamp: time.Now().Unix(),
	})
	return res
}

// personRow converts a normalized detection into its persisted form.
func personRow(imageID uint, p detection.Person) (*models.Person, error) {
	personBox, err := json.Marshal(p.PersonBox)
	if err != nil {
		return nil, fmt.Errorf("failed to encode person box: %w", err)
	}

	row := &models.Person{
		ImageID:          imageID,
		PersonIdx:        p.PersonID,
		PersonConfidence: p.PersonConfidence,
		HelmetConfidence: p.HelmetConfidence,
		HasHelmet:        p.HasHelmet,
		PersonBox:        string(personBox),
	}
	if p.HasHelmet && p.HelmetBox != nil {
		helmetBox, err := json.Marshal(*p.HelmetBox)
		if err != nil {
			return nil, fmt.Errorf("failed to encode helmet box: %w", err)
		}
		s := string(helmetBox)
		row.HelmetBox = &s
	}
	return row, nil
}

func (o *Orchestrator) broadcast(event realtime.Event) {
	if o.Hub != nil {
		o.Hub.Broadcast(event)
	}
}
