package media

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	files    map[string][]byte
	failType AssetType
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (m *memStore) key(assetType AssetType, filename string) string {
	return string(assetType) + "/" + filename
}

func (m *memStore) Save(assetType AssetType, filename string, data io.Reader) (string, error) {
	if assetType == m.failType {
		return "", errors.New("store failure")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	k := m.key(assetType, filename)
	m.files[k] = b
	return k, nil
}

func (m *memStore) Delete(relativePath string) error {
	delete(m.files, relativePath)
	return nil
}

func (m *memStore) Remove(assetType AssetType, filename string) error {
	delete(m.files, m.key(assetType, filename))
	return nil
}

func (m *memStore) GetFullPath(relativePath string) (string, error) { return relativePath, nil }
func (m *memStore) EnsureDir(assetType AssetType) (string, error)   { return string(assetType), nil }

func TestSavePairStoresRawThumbOnDecodeFailure(t *testing.T) {
	store := newMemStore()
	w := NewWriter(store)

	fileName, thumbName, err := w.SavePair("250830-101500-site-ab12cd34", 0, []byte("not-an-image"), []byte("not-an-image-either"), 1920, 1080)
	require.NoError(t, err)
	assert.Equal(t, "250830-101500-site-ab12cd34-0.webp", fileName)
	assert.Equal(t, "250830-101500-site-ab12cd34-0-thumb.webp", thumbName)

	// undecodable thumbnail bytes are stored as-is
	assert.Equal(t, []byte("not-an-image-either"), store.files["thumbnail/"+thumbName])
}

func TestSavePairCleansUpImageOnThumbFailure(t *testing.T) {
	store := newMemStore()
	store.failType = AssetTypeThumbnail
	w := NewWriter(store)

	_, _, err := w.SavePair("proj", 1, []byte("img"), []byte("thumb"), 1920, 1080)
	require.Error(t, err)
	assert.Empty(t, store.files, "image must not remain after thumbnail save failure")
}

func TestDeletePairSkipsEmptyNames(t *testing.T) {
	store := newMemStore()
	store.files["upload/a.webp"] = []byte("x")
	w := NewWriter(store)

	w.DeletePair("a.webp", "")
	assert.Empty(t, store.files)
}
