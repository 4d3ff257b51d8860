package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hardsite/helmetcheckbackend/detection"
	"github.com/hardsite/helmetcheckbackend/models"
	"github.com/hardsite/helmetcheckbackend/settings"
)

type fakeProjects struct {
	mu        sync.Mutex
	nextID    uint
	created   []*models.Project
	statuses  map[uint]string
	createErr error
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{statuses: make(map[uint]string)}
}

func (f *fakeProjects) Create(p *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	p.ID = f.nextID
	f.created = append(f.created, p)
	return nil
}

func (f *fakeProjects) GetByID(id uint) (*models.Project, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeProjects) ListAll() ([]models.Project, error)  { return nil, nil }
func (f *fakeProjects) Delete(id uint) error                { return nil }
func (f *fakeProjects) RequestArchive(id uint) error        { return nil }
func (f *fakeProjects) MarkArchiveProcessing(id uint) error { return nil }
func (f *fakeProjects) SetArchiveResult(id uint, p *string, s *int64, e error) error {
	return nil
}

func (f *fakeProjects) UpdateStatus(projectID uint, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[projectID] = status
	return nil
}

type fakeImages struct {
	mu      sync.Mutex
	nextID  uint
	created []*models.Image
}

func (f *fakeImages) Create(img *models.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	img.ID = f.nextID
	f.created = append(f.created, img)
	return nil
}

func (f *fakeImages) GetByID(id uint) (*models.Image, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeImages) ListByProjectID(id uint) ([]models.Image, error) { return nil, nil }
func (f *fakeImages) Delete(id uint) error                            { return nil }

type fakePeople struct {
	mu        sync.Mutex
	created   []*models.Person
	failAfter int // fail every Create once this many have succeeded; <0 disables
}

func (f *fakePeople) Create(p *models.Person) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter >= 0 && len(f.created) >= f.failAfter {
		return errors.New("insert failed")
	}
	f.created = append(f.created, p)
	return nil
}

func (f *fakePeople) ListByImageID(id uint) ([]models.Person, error) { return nil, nil }
func (f *fakePeople) CountByProjectID(id uint) (int64, error)        { return 0, nil }

type fakeSaver struct {
	mu      sync.Mutex
	failIdx map[int]bool
	saved   []int
}

func (f *fakeSaver) SavePair(projectName string, index int, image, thumb []byte, maxWidth, maxHeight int) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIdx[index] {
		return "", "", errors.New("disk full")
	}
	f.saved = append(f.saved, index)
	return fmt.Sprintf("%s-%d.webp", projectName, index), fmt.Sprintf("%s-%d-thumb.webp", projectName, index), nil
}

// fakeDetector returns detections keyed by the image payload
type fakeDetector struct {
	byPayload map[string][]detection.Person
}

func (f *fakeDetector) Detect(ctx context.Context, img []byte, mediaType, name string, threshold float64) []detection.Person {
	if people, ok := f.byPayload[string(img)]; ok {
		return people
	}
	return []detection.Person{}
}

func person(id int, hasHelmet bool) detection.Person {
	p := detection.Person{
		PersonID:         id,
		PersonConfidence: 0.9,
		HelmetConfidence: 0.8,
		HasHelmet:        hasHelmet,
		PersonBox:        [4]float64{100, 100, 500, 400},
	}
	if hasHelmet {
		box := [4]float64{100, 150, 200, 350}
		p.HelmetBox = &box
	}
	return p
}

func uploadsWithPayloads(payloads ...string) []Upload {
	uploads := make([]Upload, len(payloads))
	for i, payload := range payloads {
		uploads[i] = Upload{Index: i, Image: []byte(payload), Thumb: []byte("thumb")}
	}
	return uploads
}

func newTestOrchestrator(projects *fakeProjects, images *fakeImages, people *fakePeople, saver *fakeSaver, det *fakeDetector) *Orchestrator {
	if people.failAfter == 0 {
		people.failAfter = -1
	}
	return &Orchestrator{
		Projects:            projects,
		Images:              images,
		People:              people,
		Writer:              saver,
		Detector:            det,
		MaxConcurrentImages: 2,
	}
}

func TestRunEmptyBatch(t *testing.T) {
	o := newTestOrchestrator(newFakeProjects(), &fakeImages{}, &fakePeople{}, &fakeSaver{}, &fakeDetector{})
	_, err := o.Run(context.Background(), settings.DefaultSettings(), nil)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestRunProjectCreateFailure(t *testing.T) {
	projects := newFakeProjects()
	projects.createErr = errors.New("db down")
	o := newTestOrchestrator(projects, &fakeImages{}, &fakePeople{}, &fakeSaver{}, &fakeDetector{})

	_, err := o.Run(context.Background(), settings.DefaultSettings(), uploadsWithPayloads("a"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoImages)
}

func TestRunAggregatesPeopleCounts(t *testing.T) {
	projects := newFakeProjects()
	images := &fakeImages{}
	people := &fakePeople{}
	det := &fakeDetector{byPayload: map[string][]detection.Person{
		"img-a": {person(0, true), person(1, false)},
		"img-b": {},
		"img-c": {person(0, true)},
	}}
	o := newTestOrchestrator(projects, images, people, &fakeSaver{}, det)

	result, err := o.Run(context.Background(), settings.DefaultSettings(), uploadsWithPayloads("img-a", "img-b", "img-c"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.TotalImages)
	assert.Equal(t, 3, result.Summary.SuccessfulImages)
	assert.Equal(t, 0, result.Summary.FailedImages)
	assert.Equal(t, 3, result.Summary.TotalPeopleDetected)
	assert.Equal(t, models.ProjectStatusReady, result.Status)
	assert.Equal(t, models.ProjectStatusReady, projects.statuses[result.ProjectID])
	assert.Len(t, people.created, 3)
	assert.Len(t, images.created, 3)
}

func TestRunStorageFailureIsIsolated(t *testing.T) {
	projects := newFakeProjects()
	images := &fakeImages{}
	people := &fakePeople{}
	det := &fakeDetector{byPayload: map[string][]detection.Person{
		"img-a": {person(0, true)},
		"img-b": {person(0, false)},
		"img-c": {person(0, true), person(1, true)},
	}}
	saver := &fakeSaver{failIdx: map[int]bool{2: true}}
	o := newTestOrchestrator(projects, images, people, saver, det)

	result, err := o.Run(context.Background(), settings.DefaultSettings(), uploadsWithPayloads("img-a", "img-b", "img-c"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.SuccessfulImages)
	assert.Equal(t, 1, result.Summary.FailedImages)
	// the failed image contributes no people even though detection found two
	assert.Equal(t, 2, result.Summary.TotalPeopleDetected)
	assert.Len(t, images.created, 2)
	assert.Len(t, people.created, 2)

	failed := result.Results[2]
	assert.False(t, failed.Success)
	assert.NotEmpty(t, failed.Error)
	assert.Nil(t, failed.ImageID)
	assert.Empty(t, failed.People)
}

func TestRunStatusErrorWhenAllImagesFail(t *testing.T) {
	projects := newFakeProjects()
	saver := &fakeSaver{failIdx: map[int]bool{0: true, 1: true}}
	o := newTestOrchestrator(projects, &fakeImages{}, &fakePeople{}, saver, &fakeDetector{})

	result, err := o.Run(context.Background(), settings.DefaultSettings(), uploadsWithPayloads("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, models.ProjectStatusError, result.Status)
	assert.Equal(t, 2, result.Summary.FailedImages)
	assert.Equal(t, models.ProjectStatusError, projects.statuses[result.ProjectID])
}

func TestRunStatusNoPeople(t *testing.T) {
	projects := newFakeProjects()
	o := newTestOrchestrator(projects, &fakeImages{}, &fakePeople{}, &fakeSaver{}, &fakeDetector{})

	result, err := o.Run(context.Background(), settings.DefaultSettings(), uploadsWithPayloads("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, models.ProjectStatusNoPeople, result.Status)
	assert.Equal(t, 2, result.Summary.SuccessfulImages)
	assert.Zero(t, result.Summary.TotalPeopleDetected)
}

func TestRunDropsPersonOnInsertFailure(t *testing.T) {
	projects := newFakeProjects()
	people := &fakePeople{failAfter: 1}
	det := &fakeDetector{byPayload: map[string][]detection.Person{
		"img-a": {person(0, true), person(1, false)},
	}}
	o := newTestOrchestrator(projects, &fakeImages{}, people, &fakeSaver{}, det)

	result, err := o.Run(context.Background(), settings.DefaultSettings(), uploadsWithPayloads("img-a"))
	require.NoError(t, err)

	res := result.Results[0]
	assert.True(t, res.Success)
	require.NotNil(t, res.PeopleDetected)
	assert.Equal(t, 1, *res.PeopleDetected)
	assert.Len(t, res.People, 1)
	assert.Len(t, people.created, 1)
}

func TestPersonRowEncoding(t *testing.T) {
	p := person(3, true)
	row, err := personRow(7, p)
	require.NoError(t, err)

	assert.Equal(t, uint(7), row.ImageID)
	assert.Equal(t, 3, row.PersonIdx)
	assert.True(t, row.HasHelmet)
	assert.JSONEq(t, "[100,100,500,400]", row.PersonBox)
	require.NotNil(t, row.HelmetBox)
	assert.JSONEq(t, "[100,150,200,350]", *row.HelmetBox)

	// no helmet box is ever stored for a negative verdict
	noHelmet := person(4, false)
	row, err = personRow(7, noHelmet)
	require.NoError(t, err)
	assert.Nil(t, row.HelmetBox)
}
