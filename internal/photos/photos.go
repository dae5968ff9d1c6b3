/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package photos stores uploaded challenge photos in a single bucket directory.
package photos

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	ErrTooLarge   = errors.New("photo exceeds upload limit")
	ErrNotImage   = errors.New("upload is not an image")
	ErrInvalidKey = errors.New("invalid photo key")
)

// unsafeName matches runs of characters that cannot appear unescaped in a URL path.
var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// Bucket is a flat namespace of photos on an afero filesystem.
type Bucket struct {
	fs       afero.Fs
	name     string
	maxBytes int64
	now      func() time.Time
}

func New(fs afero.Fs, name string, maxBytes int64) (*Bucket, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid bucket name %q", name)
	}

	if err := fs.MkdirAll(name, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", name, err)
	}

	return &Bucket{
		fs:       fs,
		name:     name,
		maxBytes: maxBytes,
		now:      time.Now,
	}, nil
}

func (b *Bucket) Name() string {
	return b.name
}

// Put stores r as a new photo for userName and returns its key. The key is
// "<user_name>-<unix millis>.<ext>", with the extension taken from origName.
func (b *Bucket) Put(userName, origName string, r io.Reader) (string, error) {
	limit := b.maxBytes
	if limit <= 0 {
		limit = 10 << 20
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotImage
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(origName)), ".")
	if ext == "" || !isAlnum(ext) {
		ext = strings.TrimPrefix(contentType, "image/")
	}

	base := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(userName), "_"), "_")
	if base == "" {
		base = "player"
	}

	ts := b.now().UnixMilli()
	key := base + "-" + strconv.FormatInt(ts, 10) + "." + ext
	for {
		exists, err := afero.Exists(b.fs, path.Join(b.name, key))
		if err != nil {
			return "", err
		}
		if !exists {
			break
		}
		ts++
		key = base + "-" + strconv.FormatInt(ts, 10) + "." + ext
	}

	if err := afero.WriteReader(b.fs, path.Join(b.name, key), bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write photo %s: %w", key, err)
	}

	return key, nil
}

// Open returns the photo stored under key.
func (b *Bucket) Open(key string) (afero.File, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return nil, ErrInvalidKey
	}
	return b.fs.Open(path.Join(b.name, key))
}

// Remove deletes the photo stored under key.
func (b *Bucket) Remove(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return ErrInvalidKey
	}
	return b.fs.Remove(path.Join(b.name, key))
}

// List returns every key in the bucket, sorted.
func (b *Bucket) List() ([]string, error) {
	entries, err := afero.ReadDir(b.fs, b.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// RemoveAll deletes every photo and returns how many were removed.
func (b *Bucket) RemoveAll() (int, error) {
	keys, err := b.List()
	if err != nil {
		return 0, err
	}

	for _, k := range keys {
		if err := b.fs.Remove(path.Join(b.name, k)); err != nil {
			return 0, fmt.Errorf("remove %s: %w", k, err)
		}
	}
	return len(keys), nil
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
