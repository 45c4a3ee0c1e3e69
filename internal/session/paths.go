package session

import (
	"path/filepath"

	"submux/internal/textutil"
)

// UserDir returns the per-user storage directory beneath root.
func UserDir(root, userID string) string {
	return filepath.Join(root, textutil.SanitizeToken(userID))
}

// AssetPath returns the on-disk location of asset for userID, or "" when the
// asset is nil.
func AssetPath(root, userID string, asset *Asset) string {
	if asset == nil || asset.StoredName == "" {
		return ""
	}
	return filepath.Join(UserDir(root, userID), asset.StoredName)
}
