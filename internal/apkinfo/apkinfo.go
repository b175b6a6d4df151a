// Package apkinfo reads AndroidManifest.xml and the native ABI layout of an
// APK without unpacking it.
package apkinfo

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/avast/apkparser"
	"github.com/teamcutter/apkx/internal/domain"
	"github.com/teamcutter/apkx/internal/extractor"
	"github.com/teamcutter/apkx/internal/logger"
)

type manifest struct {
	XMLName     xml.Name    `xml:"manifest"`
	Package     string      `xml:"package,attr"`
	VersionCode string      `xml:"versionCode,attr"`
	VersionName string      `xml:"versionName,attr"`
	UsesSDK     usesSDK     `xml:"uses-sdk"`
	Application application `xml:"application"`
}

type usesSDK struct {
	MinSDKVersion string `xml:"minSdkVersion,attr"`
}

type application struct {
	ExtractNativeLibs *bool `xml:"extractNativeLibs,attr"`
}

type Inspector struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Inspector {
	return &Inspector{log: log}
}

func (i *Inspector) Inspect(path string) (*domain.AppInfo, error) {
	var manifestContent bytes.Buffer
	enc := xml.NewEncoder(&manifestContent)
	enc.Indent("", "\t")

	zipErr, resErr, manErr := apkparser.ParseApk(path, enc)
	if zipErr != nil {
		return nil, fmt.Errorf("failed to unzip the APK: %w", zipErr)
	}
	if resErr != nil {
		i.log.Debugf("resources of %s not parsed: %v", path, resErr)
	}
	if manErr != nil {
		return nil, fmt.Errorf("failed to parse AndroidManifest.xml: %w", manErr)
	}

	return decodeManifest(manifestContent.Bytes())
}

func decodeManifest(data []byte) (*domain.AppInfo, error) {
	var m manifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal AndroidManifest.xml: %w", err)
	}

	info := &domain.AppInfo{
		Package:     m.Package,
		VersionCode: m.VersionCode,
		VersionName: m.VersionName,
		MinSDK:      m.UsesSDK.MinSDKVersion,
		// Unset means true for the platform default.
		ExtractNativeLibs: true,
	}
	if m.Application.ExtractNativeLibs != nil {
		info.ExtractNativeLibs = *m.Application.ExtractNativeLibs
	}
	return info, nil
}

// ABIs returns the architecture directories under lib/ in entry order.
func ABIs(entries []extractor.Entry) []string {
	seen := make(map[string]struct{})
	var abis []string
	for _, e := range entries {
		parts := strings.Split(e.Name, "/")
		if len(parts) < 3 || parts[0] != "lib" || parts[1] == "" {
			continue
		}
		if _, ok := seen[parts[1]]; ok {
			continue
		}
		seen[parts[1]] = struct{}{}
		abis = append(abis, parts[1])
	}
	return abis
}
