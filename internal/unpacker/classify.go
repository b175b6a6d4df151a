package unpacker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ClassifyByArchitecture maps every directory under <output>/lib to the
// native libraries directly inside it. A missing lib directory is returned as
// an error satisfying errors.Is(err, fs.ErrNotExist).
func (u *Unpacker) ClassifyByArchitecture() (map[string][]string, error) {
	return classify(filepath.Join(u.outputDir, u.libDir), u.nativeSuffix)
}

// ClassifyDir classifies an already unpacked tree. Layout options
// (WithLibDir, WithNativeSuffix) apply; the default layout is lib/*.so.
func ClassifyDir(outputDir string, opts ...Option) (map[string][]string, error) {
	return New("", append(opts, WithOutputDir(outputDir))...).ClassifyByArchitecture()
}

func classify(libDir, suffix string) (map[string][]string, error) {
	entries, err := os.ReadDir(libDir)
	if err != nil {
		return nil, fmt.Errorf("native library directory: %w", err)
	}

	byArch := make(map[string][]string)
	for _, entry := range entries {
		archPath := filepath.Join(libDir, entry.Name())
		if !isDir(entry, archPath) {
			continue
		}

		libs, err := nativeLibs(archPath, suffix)
		if err != nil {
			return nil, err
		}
		byArch[entry.Name()] = libs
	}

	return byArch, nil
}

func nativeLibs(archPath, suffix string) ([]string, error) {
	entries, err := os.ReadDir(archPath)
	if err != nil {
		return nil, err
	}

	libs := []string{}
	for _, e := range entries {
		if isDir(e, filepath.Join(archPath, e.Name())) {
			continue
		}
		if strings.HasSuffix(e.Name(), suffix) {
			libs = append(libs, filepath.Join(archPath, e.Name()))
		}
	}
	return libs, nil
}

func isDir(entry os.DirEntry, path string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
