package utils

import (
	"github.com/google/uuid"
)

// documentNamespace scopes indexed document ids
var documentNamespace = uuid.MustParse("6f1c1a52-8a3e-4d57-9d0e-3b0a4a0c2f11")

// GenerateUUID 生成一个新的 UUID v7
func GenerateUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewDocumentID derives a stable id for a record of a project, so that
// re-indexing a record overwrites its previous document.
func NewDocumentID(projectKey, recordID string) string {
	return uuid.NewSHA1(documentNamespace, []byte(projectKey+"/"+recordID)).String()
}

// IsValidUUID 检查字符串是否是有效的 UUID
func IsValidUUID(uuidStr string) bool {
	_, err := uuid.Parse(uuidStr)
	return err == nil
}
