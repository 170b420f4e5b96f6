package zookeeper

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// nodePath flattens a resource id into a single path segment under root:
// any "/" is replaced with "-" and a SHA-1 of the original id is appended,
// so two distinct resource ids that only differ by slash placement can
// never collide on the flattened name (spec.md §6).
func nodePath(root, resourceID string) string {
	flat := strings.ReplaceAll(resourceID, "/", "-")
	sum := sha1.Sum([]byte(resourceID))
	return root + "/" + flat + "-" + hex.EncodeToString(sum[:])
}
