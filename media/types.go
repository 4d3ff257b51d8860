// media/types.go
package media

type AssetType string

const (
	AssetTypeUpload    AssetType = "upload"
	AssetTypeThumbnail AssetType = "thumbnail"
	AssetTypeArchive   AssetType = "archive"
	AssetTypeUnknown   AssetType = "unknown"
)
