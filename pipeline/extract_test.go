package pipeline

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type formPart struct {
	field    string
	filename string
	data     []byte
}

func buildForm(t *testing.T, files []formPart, values map[string]string) *multipart.Form {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range files {
		w, err := mw.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	reader := multipart.NewReader(&buf, mw.Boundary())
	form, err := reader.ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form
}

func imagePair(index int) []formPart {
	return []formPart{
		{fmt.Sprintf("image_%d", index), fmt.Sprintf("photo%d.jpg", index), []byte(fmt.Sprintf("image-bytes-%d", index))},
		{fmt.Sprintf("thumb_%d", index), fmt.Sprintf("thumb%d.jpg", index), []byte(fmt.Sprintf("thumb-bytes-%d", index))},
	}
}

func TestExtractUploadsStopsAtFirstGap(t *testing.T) {
	var files []formPart
	for _, idx := range []int{0, 1, 3} {
		files = append(files, imagePair(idx)...)
	}
	form := buildForm(t, files, nil)

	uploads := ExtractUploads(form)
	require.Len(t, uploads, 2)
	assert.Equal(t, 0, uploads[0].Index)
	assert.Equal(t, 1, uploads[1].Index)
	assert.Equal(t, []byte("image-bytes-1"), uploads[1].Image)
	assert.Equal(t, []byte("thumb-bytes-1"), uploads[1].Thumb)
}

func TestExtractUploadsDropsIndexMissingThumbnail(t *testing.T) {
	files := imagePair(0)
	files = append(files, formPart{"image_1", "photo1.jpg", []byte("image-bytes-1")})
	files = append(files, imagePair(2)...)
	form := buildForm(t, files, nil)

	uploads := ExtractUploads(form)
	require.Len(t, uploads, 2)
	assert.Equal(t, 0, uploads[0].Index)
	assert.Equal(t, 2, uploads[1].Index)
}

func TestExtractUploadsParsesDateAndLocation(t *testing.T) {
	form := buildForm(t, imagePair(0), map[string]string{
		"initialImageDate_0":     "1724932800000",
		"initialImageLocation_0": "Gate 4, north./ <script>",
	})

	uploads := ExtractUploads(form)
	require.Len(t, uploads, 1)

	require.NotNil(t, uploads[0].TakenAt)
	assert.Equal(t, int64(1724932800000), *uploads[0].TakenAt)

	require.NotNil(t, uploads[0].Location)
	assert.Equal(t, "Gate 4, north./ script", *uploads[0].Location)
}

func TestExtractUploadsIgnoresBadDate(t *testing.T) {
	form := buildForm(t, imagePair(0), map[string]string{
		"initialImageDate_0": "yesterday",
	})

	uploads := ExtractUploads(form)
	require.Len(t, uploads, 1)
	assert.Nil(t, uploads[0].TakenAt)
}

func TestExtractUploadsCarriesMediaTypeAndName(t *testing.T) {
	form := buildForm(t, imagePair(0), nil)

	uploads := ExtractUploads(form)
	require.Len(t, uploads, 1)
	assert.Equal(t, "photo0.jpg", uploads[0].ImageName)
}

func TestExtractUploadsEmptyForm(t *testing.T) {
	form := buildForm(t, nil, map[string]string{"settings": "{}"})
	assert.Empty(t, ExtractUploads(form))
	assert.Empty(t, ExtractUploads(nil))
}
