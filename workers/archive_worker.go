package workers

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/hardsite/helmetcheckbackend/repository"
	"github.com/hardsite/helmetcheckbackend/utils"
)

// ArchiveJob requests ZIP generation for one project.
type ArchiveJob struct {
	ProjectID uint
}

// ArchiveProcessor runs archive generation jobs on a small worker pool so
// archive building never blocks upload requests.
type ArchiveProcessor struct {
	JobQueue    chan ArchiveJob
	Projects    repository.ProjectRepositoryInterface
	Images      repository.ImageRepositoryInterface
	UploadsDir  string // absolute directory of stored originals
	ArchivesDir string // absolute directory where archives are written
	Wg          sync.WaitGroup
	StopChan    chan struct{}
	Pending     map[uint]bool
	Mutex       sync.Mutex
}

func NewArchiveProcessor(projects repository.ProjectRepositoryInterface, images repository.ImageRepositoryInterface, uploadsDir, archivesDir string, queueSize, numWorkers int) *ArchiveProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 20
	}
	proc := &ArchiveProcessor{
		JobQueue:    make(chan ArchiveJob, queueSize),
		Projects:    projects,
		Images:      images,
		UploadsDir:  uploadsDir,
		ArchivesDir: archivesDir,
		StopChan:    make(chan struct{}),
		Pending:     make(map[uint]bool),
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d archive worker(s) with queue size %d", numWorkers, queueSize)
	return proc
}

func (ap *ArchiveProcessor) worker(id int) {
	defer ap.Wg.Done()

	log.Printf("Archive worker %d started", id)
	for {
		select {
		case job, ok := <-ap.JobQueue:
			if !ok {
				log.Printf("Archive worker %d stopping: Job queue closed", id)
				return
			}

			log.Printf("Worker %d: Received archive job for project %d", id, job.ProjectID)
			if err := ap.Projects.MarkArchiveProcessing(job.ProjectID); err != nil {
				log.Printf("Worker %d: ERROR marking archive processing for project %d: %v. Skipping job.", id, job.ProjectID, err)
				ap.clearPending(job.ProjectID)
				continue
			}

			ap.processArchiveJob(job)
			ap.clearPending(job.ProjectID)

		case <-ap.StopChan:
			log.Printf("Archive worker %d stopping: Stop signal received", id)
			return
		}
	}
}

// processArchiveJob builds the ZIP and records the outcome on the project
func (ap *ArchiveProcessor) processArchiveJob(job ArchiveJob) {
	var taskErr error
	var archivePathPtr *string
	var archiveSizePtr *int64

	images, err := ap.Images.ListByProjectID(job.ProjectID)
	if err != nil {
		taskErr = fmt.Errorf("failed to list images: %w", err)
	} else if len(images) == 0 {
		taskErr = fmt.Errorf("project has no stored images")
	} else {
		fileNames := make([]string, 0, len(images))
		for _, img := range images {
			fileNames = append(fileNames, img.FileName)
		}

		zipName, zipSize, zipErr := utils.CreateProjectZip(ap.UploadsDir, fileNames, ap.ArchivesDir)
		if zipErr != nil {
			taskErr = fmt.Errorf("archive generation failed: %w", zipErr)
		} else {
			relPath := filepath.ToSlash(filepath.Join(filepath.Base(ap.ArchivesDir), zipName))
			archivePathPtr = &relPath
			archiveSizePtr = &zipSize
			log.Printf("Worker: Generated archive for project %d at %s", job.ProjectID, relPath)
		}
	}

	if taskErr != nil {
		log.Printf("Worker: ERROR generating archive for project %d: %v", job.ProjectID, taskErr)
	}
	if dbErr := ap.Projects.SetArchiveResult(job.ProjectID, archivePathPtr, archiveSizePtr, taskErr); dbErr != nil {
		log.Printf("Worker: ERROR updating archive result for project %d: %v", job.ProjectID, dbErr)
	}
}

// QueueJob queues archive generation for a project if not already pending
func (ap *ArchiveProcessor) QueueJob(job ArchiveJob) bool {
	ap.Mutex.Lock()
	if ap.Pending[job.ProjectID] {
		ap.Mutex.Unlock()
		return false
	}
	ap.Pending[job.ProjectID] = true
	ap.Mutex.Unlock()

	select {
	case ap.JobQueue <- job:
		log.Printf("Queued archive generation for project %d", job.ProjectID)
		return true
	default:
		log.Printf("WARNING: Archive job queue full. Failed to queue project %d", job.ProjectID)
		ap.clearPending(job.ProjectID)
		return false
	}
}

func (ap *ArchiveProcessor) clearPending(projectID uint) {
	ap.Mutex.Lock()
	delete(ap.Pending, projectID)
	ap.Mutex.Unlock()
}

func (ap *ArchiveProcessor) Stop() {
	log.Println("Stopping archive workers...")
	close(ap.StopChan)
	ap.Wg.Wait()
	log.Println("All archive workers stopped")
}
