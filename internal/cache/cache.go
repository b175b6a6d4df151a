package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/teamcutter/apkx/internal/domain"
)

// DiskCache stores downloaded archives as <dir>/<name>/<digest>/package<ext>.
type DiskCache struct {
	sync.RWMutex
	dir string
}

func New(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &DiskCache{dir: dir}, nil
}

// Key derives the cache name and digest for a remote archive location.
func Key(location string) (name, digest string) {
	base := path.Base(strings.SplitN(location, "?", 2)[0])
	name = strings.TrimSuffix(base, archiveExt(base))
	if name == "" || name == "." || name == "/" {
		name = "archive"
	}

	sum := sha256.Sum256([]byte(location))
	return name, hex.EncodeToString(sum[:])[:16]
}

func (c *DiskCache) GetPath(name, digest string) string {
	c.RLock()
	defer c.RUnlock()
	return c.getPath(name, digest)
}

func (c *DiskCache) getPath(name, digest string) string {
	dir := filepath.Join(c.dir, name, digest)
	for _, ext := range domain.Extensions() {
		p := filepath.Join(dir, "package"+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return filepath.Join(dir, "package.apk")
}

func (c *DiskCache) Has(name, digest string) bool {
	c.RLock()
	defer c.RUnlock()
	_, err := os.Stat(c.getPath(name, digest))
	return err == nil
}

func (c *DiskCache) Store(name, digest, src string) (string, error) {
	c.Lock()
	defer c.Unlock()

	ext := archiveExt(src)
	if ext == "" {
		ext = ".apk"
	}
	destDir := filepath.Join(c.dir, name, digest)
	destPath := filepath.Join(destDir, "package"+ext)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}

	if err := os.Rename(src, destPath); err != nil {
		return "", err
	}

	return destPath, nil
}

func (c *DiskCache) Size() (int64, error) {
	c.RLock()
	defer c.RUnlock()

	var size int64

	err := filepath.Walk(c.dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}

	return size, err
}

func (c *DiskCache) Clear() error {
	c.Lock()
	defer c.Unlock()

	return os.RemoveAll(c.dir)
}

func archiveExt(p string) string {
	lower := strings.ToLower(filepath.Base(p))
	for _, ext := range domain.Extensions() {
		if len(lower) > len(ext) && strings.HasSuffix(lower, ext) {
			return ext
		}
	}

	return ""
}
