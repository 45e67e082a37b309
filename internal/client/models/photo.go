package models

import (
	"path"
	"time"
)

// Photo is the metadata of a lot photo. The bytes live separately as a blob
// keyed by the same ID. Synced is local state and never leaves the device.
type Photo struct {
	ID        string    `json:"id"`
	LotID     string    `json:"lot_id"`
	FilePath  string    `json:"file_path"`
	FileName  string    `json:"file_name"`
	IsPrimary bool      `json:"is_primary"`
	Synced    bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PhotoObjectKey returns the object storage key of a photo: {ownerId}/{fileName}.
func PhotoObjectKey(lotID, fileName string) string {
	return path.Join(lotID, fileName)
}
