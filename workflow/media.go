package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ipcollateral/lending-services/constants"
	"github.com/ipcollateral/lending-services/util"
)

// DetectMediaType sniffs data and returns its MIME type without
// parameters. Only image, video and audio content is accepted.
func DetectMediaType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("Media file is empty")
	}
	mtype := mimetype.Detect(data)
	contentType, _, _ := strings.Cut(mtype.String(), ";")
	contentType = strings.TrimSpace(contentType)
	topLevel, _, _ := strings.Cut(contentType, "/")
	if !util.StringListContains(constants.AcceptedMediaTypes, topLevel) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, contentType)
	}
	return contentType, nil
}

// SubjectHash returns the hex SHA-256 digest the verification service
// uses to match media.
func SubjectHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
