package pipeline

import (
	"fmt"
	"io"
	"log"
	"math"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/hardsite/helmetcheckbackend/settings"
	"github.com/hardsite/helmetcheckbackend/utils"
)

// Upload is one extracted image group from a multipart request.
type Upload struct {
	Index     int
	Image     []byte
	ImageType string // declared media type, used for logging only
	ImageName string // client-side file name, used for logging only
	Thumb     []byte
	TakenAt   *int64 // epoch milliseconds, nil when unknown
	Location  *string
}

// ExtractUploads walks the indexed field convention (image_0, thumb_0,
// initialImageDate_0, initialImageLocation_0, image_1, ...) and returns the
// per-image records in input order. Extraction stops at the first index with
// no image part; gaps silently truncate the batch. An index whose image or
// thumbnail part cannot be read is dropped without failing the request.
func ExtractUploads(form *multipart.Form) []Upload {
	var uploads []Upload
	if form == nil {
		return uploads
	}

	for index := 0; ; index++ {
		imageHeaders := form.File[fmt.Sprintf("image_%d", index)]
		if len(imageHeaders) == 0 {
			break
		}

		thumbHeaders := form.File[fmt.Sprintf("thumb_%d", index)]
		if len(thumbHeaders) == 0 {
			log.Printf("pipeline: index %d has no thumbnail part, dropping", index)
			continue
		}

		imageData, err := readPart(imageHeaders[0])
		if err != nil {
			log.Printf("pipeline: failed to read image part at index %d: %v", index, err)
			continue
		}
		thumbData, err := readPart(thumbHeaders[0])
		if err != nil {
			log.Printf("pipeline: failed to read thumbnail part at index %d: %v", index, err)
			continue
		}

		upload := Upload{
			Index:     index,
			Image:     imageData,
			ImageType: imageHeaders[0].Header.Get("Content-Type"),
			ImageName: imageHeaders[0].Filename,
			Thumb:     thumbData,
		}

		if vals := form.Value[fmt.Sprintf("initialImageDate_%d", index)]; len(vals) > 0 {
			upload.TakenAt = parseEpochMillis(vals[0])
		}
		if upload.TakenAt == nil {
			// fall back to the EXIF capture time embedded in the image itself
			upload.TakenAt = utils.ExifTakenAtMillis(imageData)
		}

		if vals := form.Value[fmt.Sprintf("initialImageLocation_%d", index)]; len(vals) > 0 {
			upload.Location = settings.SanitizeLocation(vals[0])
		}

		uploads = append(uploads, upload)
	}
	return uploads
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read part %s: %w", header.Filename, err)
	}
	return data, nil
}

// parseEpochMillis parses a numeric form value into a non-negative epoch
// millisecond timestamp, discarding anything unusable.
func parseEpochMillis(raw string) *int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	ms := int64(math.Round(f))
	return &ms
}
