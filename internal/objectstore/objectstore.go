package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const handleScheme = "s3://"

// ErrObjectNotFound is returned by Stat when the handle points nowhere.
var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Handle      string
	Size        int64
	ContentType string
	UploadedAt  time.Time
}

// ObjectStore keeps uploaded source videos.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)
	Stat(ctx context.Context, handle string) (*ObjectInfo, error)
	Delete(ctx context.Context, handle string) error
	Type() string
}

func Handle(bucket, key string) string {
	return handleScheme + bucket + "/" + key
}

// ParseHandle splits s3://bucket/key.
func ParseHandle(handle string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(handle, handleScheme)
	if !ok {
		return "", "", fmt.Errorf("handle %q does not start with %s", handle, handleScheme)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("handle %q must look like %sbucket/key", handle, handleScheme)
	}
	return bucket, key, nil
}

// OwnedBy reports whether handle names an object uploaded by owner. Uploads
// are keyed "<owner>/<name>".
func OwnedBy(handle, owner string) bool {
	if owner == "" {
		return false
	}
	_, key, err := ParseHandle(handle)
	if err != nil {
		return false
	}
	name, ok := strings.CutPrefix(key, owner+"/")
	return ok && name != "" && !strings.Contains(name, "/")
}

// IsHandle reports whether ref is a well formed object handle.
func IsHandle(ref string) bool {
	_, _, err := ParseHandle(ref)
	return err == nil
}
