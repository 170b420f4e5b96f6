package filelock

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// lockFilePath flattens a resource id into a single filename under dir,
// the same "replace slashes, append a hash of the original" scheme the
// ZooKeeper backend uses, so distinct resource ids never collide on disk.
func lockFilePath(dir, resourceID string) string {
	flat := strings.ReplaceAll(resourceID, "/", "-")
	sum := sha1.Sum([]byte(resourceID))
	return dir + "/" + flat + "-" + hex.EncodeToString(sum[:]) + ".lock"
}
