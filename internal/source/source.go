// Package source enumerates candidate images for a digest job from a
// local directory tree or an S3-style bucket/prefix.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrSourceNotFound signals that a local source path does not exist or is
// not a directory. It fails the whole job at enumeration time.
var ErrSourceNotFound = errors.New("source not found")

// Source is the image origin of a digest job. Exactly one concrete kind
// exists per job; the "exactly one of local/S3" request rule is enforced
// by this type rather than by branching in the pipeline.
type Source interface {
	Describe() string
	source()
}

// LocalDir digests a directory tree on the local filesystem.
type LocalDir struct {
	Path string
}

func (d LocalDir) Describe() string { return d.Path }
func (LocalDir) source()            {}

// S3Location digests all objects under bucket/prefix.
type S3Location struct {
	Bucket string
	Prefix string
}

func (l S3Location) Describe() string { return "s3://" + l.Bucket + "/" + l.Prefix }
func (S3Location) source()            {}

// Image is one enumerated candidate. Path is the display reference stored
// on job entries and face points; Key is set for remote images.
type Image struct {
	Path   string
	Bucket string
	Key    string
	Remote bool
}

// ObjectLister is the slice of the object store the enumerator needs.
type ObjectLister interface {
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// Enumerator produces the deterministic image list for a source and
// fetches individual image contents. objects may be nil when no object
// store is configured; S3 sources then fail at enumeration.
type Enumerator struct {
	objects ObjectLister
}

func NewEnumerator(objects ObjectLister) *Enumerator {
	return &Enumerator{objects: objects}
}

// Enumerate lists all candidate images in lexicographic order. Unreadable
// files are not filtered here; reading them is the per-image pipeline's
// problem.
func (e *Enumerator) Enumerate(ctx context.Context, src Source) ([]Image, error) {
	switch s := src.(type) {
	case LocalDir:
		return e.enumerateLocal(s)
	case S3Location:
		return e.enumerateS3(ctx, s)
	default:
		return nil, fmt.Errorf("unsupported source type %T", src)
	}
}

func (e *Enumerator) enumerateLocal(src LocalDir) ([]Image, error) {
	info, err := os.Stat(src.Path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, src.Path)
	}

	var images []Image
	err = filepath.WalkDir(src.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if hasImageExt(path) {
			images = append(images, Image{Path: path})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", src.Path, err)
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Path < images[j].Path })
	return images, nil
}

func (e *Enumerator) enumerateS3(ctx context.Context, src S3Location) ([]Image, error) {
	if e.objects == nil {
		return nil, errors.New("no object store configured for S3 sources")
	}

	keys, err := e.objects.ListKeys(ctx, src.Bucket, src.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list s3 source: %w", err)
	}

	var images []Image
	for _, key := range keys {
		// The thumbnail tree holds our own digest output, never input.
		if strings.HasPrefix(key, "thumbnail/") || strings.Contains(key, "/thumbnail/") {
			continue
		}
		if hasImageExt(key) {
			images = append(images, Image{
				Path:   "s3://" + src.Bucket + "/" + key,
				Bucket: src.Bucket,
				Key:    key,
				Remote: true,
			})
		}
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Path < images[j].Path })
	return images, nil
}

// Fetch reads one enumerated image's contents.
func (e *Enumerator) Fetch(ctx context.Context, img Image) ([]byte, error) {
	if img.Remote {
		if e.objects == nil {
			return nil, errors.New("no object store configured")
		}
		return e.objects.GetObject(ctx, img.Bucket, img.Key)
	}
	return os.ReadFile(img.Path)
}

func hasImageExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
