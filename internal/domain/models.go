package domain

import "time"

const (
	StatusPending     = "pending"
	StatusDone        = "done"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// Source is an archive to unpack, either a local path or an http(s) URL.
type Source struct {
	Location string
	SHA256   string
}

type FetchResult struct {
	Source string
	Path   string
	Error  error
}

type Request struct {
	Source    Source
	OutputDir string
	Classify  bool
	Inspect   bool
}

type AppInfo struct {
	Package           string `json:"package" yaml:"package"`
	VersionCode       string `json:"version_code,omitempty" yaml:"version_code,omitempty"`
	VersionName       string `json:"version_name,omitempty" yaml:"version_name,omitempty"`
	MinSDK            string `json:"min_sdk,omitempty" yaml:"min_sdk,omitempty"`
	ExtractNativeLibs bool   `json:"extract_native_libs" yaml:"extract_native_libs"`
}

type UnpackRecord struct {
	Archive     string              `json:"archive" yaml:"archive"`
	OutputDir   string              `json:"output_dir" yaml:"output_dir"`
	SHA256      string              `json:"sha256" yaml:"sha256"`
	Package     string              `json:"package,omitempty" yaml:"package,omitempty"`
	VersionName string              `json:"version_name,omitempty" yaml:"version_name,omitempty"`
	Libs        map[string][]string `json:"libs,omitempty" yaml:"libs,omitempty"`
	Status      string              `json:"status" yaml:"status"`
	UnpackedAt  time.Time           `json:"unpacked_at" yaml:"unpacked_at"`
}

// LibCount is the number of native libraries across all architectures.
func (r *UnpackRecord) LibCount() int {
	n := 0
	for _, libs := range r.Libs {
		n += len(libs)
	}
	return n
}

type Manifest struct {
	Records map[string]*UnpackRecord `json:"records"`
}

func NewManifest() *Manifest {
	return &Manifest{Records: make(map[string]*UnpackRecord)}
}
