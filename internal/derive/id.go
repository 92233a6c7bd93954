package derive

import (
	"encoding/base64"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/munchie/internal/apperr"
	"github.com/starford/munchie/internal/models"
)

// CollectionID derives the id of a folder collection from its path relative
// to the models root. Separators are normalized to "/" first, so the same
// folder yields the same id on every platform and from every scan root.
func CollectionID(rel string) string {
	norm := strings.ReplaceAll(rel, `\`, "/")
	return models.FolderIDPrefix + base64.RawURLEncoding.EncodeToString([]byte(norm))
}

// CleanRelative validates a caller-supplied folder path relative to the models
// root and returns it slash separated ("" for the root itself).
func CleanRelative(rel string) (string, error) {
	rel = strings.ReplaceAll(strings.TrimSpace(rel), `\`, "/")
	if rel == "" || rel == "." || rel == "/" {
		return "", nil
	}
	if path.IsAbs(rel) || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", apperr.Invalid("path", "must be relative to the models directory")
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", apperr.Invalid("path", "must not contain '..' segments")
		}
	}
	cleaned := path.Clean(rel)
	if cleaned == "." {
		return "", nil
	}
	return cleaned, nil
}
