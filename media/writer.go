package media

import (
	"bytes"
	"fmt"
	"log"
)

// ImageFileName returns the deterministic stored name for an image index.
func ImageFileName(projectName string, index int) string {
	return fmt.Sprintf("%s-%d.webp", projectName, index)
}

// ThumbFileName returns the deterministic stored name for a thumbnail index.
func ThumbFileName(projectName string, index int) string {
	return fmt.Sprintf("%s-%d-thumb.webp", projectName, index)
}

// Writer persists image and thumbnail pairs through a Store under
// deterministic, project-scoped names.
type Writer struct {
	store Store
}

func NewWriter(store Store) *Writer {
	return &Writer{store: store}
}

// SavePair writes an image and its thumbnail to durable storage. The
// thumbnail is normalized to webp within the given bounds; if normalization
// fails the raw thumbnail bytes are stored instead. Returns the stored file
// names. On thumbnail failure the already-written image is removed so no
// half-saved pair remains.
func (w *Writer) SavePair(projectName string, index int, image, thumb []byte, maxWidth, maxHeight int) (string, string, error) {
	fileName := ImageFileName(projectName, index)
	imageRelPath, err := w.store.Save(AssetTypeUpload, fileName, bytes.NewReader(image))
	if err != nil {
		return "", "", fmt.Errorf("failed to save image %s: %w", fileName, err)
	}

	thumbName := ThumbFileName(projectName, index)
	normalized, err := NormalizeThumbnail(thumb, maxWidth, maxHeight)
	if err != nil {
		log.Printf("media.writer: could not normalize thumbnail %s, storing raw bytes: %v", thumbName, err)
		normalized = thumb
	}

	if _, err := w.store.Save(AssetTypeThumbnail, thumbName, bytes.NewReader(normalized)); err != nil {
		if delErr := w.store.Delete(imageRelPath); delErr != nil {
			log.Printf("media.writer: failed to clean up image %s after thumbnail error: %v", imageRelPath, delErr)
		}
		return "", "", fmt.Errorf("failed to save thumbnail %s: %w", thumbName, err)
	}

	return fileName, thumbName, nil
}

// DeletePair removes a stored image and thumbnail pair, best effort.
func (w *Writer) DeletePair(fileName, thumbFileName string) {
	for assetType, name := range map[AssetType]string{
		AssetTypeUpload:    fileName,
		AssetTypeThumbnail: thumbFileName,
	} {
		if name == "" {
			continue
		}
		if err := w.store.Remove(assetType, name); err != nil {
			log.Printf("media.writer: failed to delete %s asset %s: %v", assetType, name, err)
		}
	}
}
