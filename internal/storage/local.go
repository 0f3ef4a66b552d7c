package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpang/image-handler/internal/apierror"
)

// LocalStore serves objects from Root/<bucket>/<key> on the local
// filesystem.
type LocalStore struct {
	Root string
}

// NewLocalStore returns a store rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

// Get reads the file for bucket/key. Keys that escape the bucket directory
// are reported as missing.
func (s *LocalStore) Get(_ context.Context, bucket, key string) (*Object, error) {
	dir := filepath.Join(s.Root, filepath.FromSlash(bucket))
	path := filepath.Join(dir, filepath.FromSlash(key))
	if !strings.HasPrefix(path, dir+string(filepath.Separator)) {
		return nil, apierror.NoSuchKey(key, fmt.Errorf("key outside bucket: %s", key))
	}

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		err = fs.ErrNotExist
	}
	if err != nil {
		return nil, mapLocalError(key, err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, mapLocalError(key, err)
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(key)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	modified := info.ModTime().UTC()
	return &Object{
		Body:         body,
		ContentType:  contentType,
		LastModified: &modified,
	}, nil
}

func mapLocalError(key string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return apierror.NoSuchKey(key, err)
	case errors.Is(err, fs.ErrPermission):
		return &apierror.Error{Status: http.StatusForbidden, Code: apierror.CodeAccessDenied, Message: "Access Denied", Err: err}
	default:
		return apierror.Wrap(err, http.StatusInternalServerError, apierror.CodeInternalError)
	}
}
