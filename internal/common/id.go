package common

import (
	"github.com/google/uuid"
)

// NewDownloadID generates a unique download run ID with the "dl_" prefix
// Format: dl_<uuid>
func NewDownloadID() string {
	return "dl_" + uuid.New().String()
}
