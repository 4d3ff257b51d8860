package utils

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/facette/natsort"
	"github.com/google/uuid"
)

// CreateProjectZip creates a ZIP archive of a project's stored images.
// uploadsDir: the absolute directory holding the stored originals.
// fileNames: the stored file names belonging to the project.
// archiveSaveDir: the absolute directory where the ZIP file should be saved.
// Returns: the archive file name, its size in bytes, and an error.
func CreateProjectZip(uploadsDir string, fileNames []string, archiveSaveDir string) (string, int64, error) {
	if len(fileNames) == 0 {
		return "", 0, fmt.Errorf("no files to archive")
	}

	if err := os.MkdirAll(archiveSaveDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create zip save directory %s: %w", archiveSaveDir, err)
	}

	// archive entries in natural order, so site-2 sorts before site-10
	sorted := append([]string(nil), fileNames...)
	natsort.Sort(sorted)

	timestamp := time.Now().Unix()
	archiveUUID, _ := uuid.NewRandom()
	zipFilename := fmt.Sprintf("archive_%d_%s.zip", timestamp, archiveUUID.String()[:8])
	zipFilePath := filepath.Join(archiveSaveDir, zipFilename)

	zipFile, err := os.Create(zipFilePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create zip file %s: %w", zipFilePath, err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	foundFiles := false
	for _, name := range sorted {
		if name != filepath.Base(name) {
			log.Printf("zipper: skipping suspicious file name %q", name)
			continue
		}

		sourcePath := filepath.Join(uploadsDir, name)
		fileToZip, err := os.Open(sourcePath)
		if err != nil {
			log.Printf("zipper: failed to open file %s for zipping: %v. Skipping.", sourcePath, err)
			continue
		}

		writer, err := zipWriter.Create(name)
		if err != nil {
			fileToZip.Close()
			log.Printf("zipper: failed to create entry in zip for %s: %v. Skipping.", name, err)
			continue
		}

		_, err = io.Copy(writer, fileToZip)
		fileToZip.Close()
		if err != nil {
			log.Printf("zipper: failed to write file %s to zip: %v. Skipping.", name, err)
			continue
		}
		foundFiles = true
	}

	if !foundFiles {
		zipWriter.Close()
		zipFile.Close()
		os.Remove(zipFilePath)
		return "", 0, fmt.Errorf("none of the project files could be archived")
	}

	if err := zipWriter.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to finalize zip writer for %s: %w", zipFilePath, err)
	}

	zipInfo, err := os.Stat(zipFilePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat created zip file %s: %w", zipFilePath, err)
	}

	log.Printf("zipper: created project archive %s (Size: %d bytes)", zipFilePath, zipInfo.Size())
	return zipFilename, zipInfo.Size(), nil
}
