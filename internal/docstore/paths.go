package docstore

import (
	"fmt"
	"strings"
)

const resourceMarker = "/documents/"

// TrimResource strips a fully qualified resource name
// ("projects/p/databases/(default)/documents/orders/42") down to the
// document path. Plain paths are returned unchanged, without surrounding
// slashes.
func TrimResource(resource string) string {
	if i := strings.Index(resource, resourceMarker); i >= 0 {
		resource = resource[i+len(resourceMarker):]
	}
	return strings.Trim(resource, "/")
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidateDocumentPath checks that path has an even, non-zero number of
// non-empty segments.
func ValidateDocumentPath(path string) error {
	segments := strings.Split(path, "/")
	if len(segments)%2 != 0 {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return nil
}

// ValidateCollectionPath checks that path has an odd number of non-empty
// segments.
func ValidateCollectionPath(path string) error {
	segments := strings.Split(path, "/")
	if len(segments)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, path)
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return nil
}

// Collection returns the collection part of a document path.
func Collection(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// ID returns the last segment of a path.
func ID(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

// InCollection reports whether path is a direct child document of collection.
func InCollection(path, collection string) bool {
	rest, ok := strings.CutPrefix(path, collection+"/")
	return ok && rest != "" && !strings.Contains(rest, "/")
}
