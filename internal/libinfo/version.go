/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package libinfo reports the version of the go-quota module the binary is built with.
package libinfo

import (
	"debug/buildinfo"
	"regexp"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const moduleName = "github.com/acronis/go-quota"

// PrometheusVersionLabel is the name of the constant label with the module version.
const PrometheusVersionLabel = "go_quota_version"

// AddPrometheusVersionLabel returns a copy of labels with the module version label added.
func AddPrometheusVersionLabel(labels prometheus.Labels) prometheus.Labels {
	labelsCopy := make(prometheus.Labels, len(labels)+1)
	for k, v := range labels {
		labelsCopy[k] = v
	}
	labelsCopy[PrometheusVersionLabel] = GetVersion()
	return labelsCopy
}

var version string
var versionOnce sync.Once

// GetVersion returns the module version, or v0.0.0 if it is unknown (e.g. in tests).
func GetVersion() string {
	versionOnce.Do(func() {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			version = extractVersion(buildInfo, moduleName)
		}
		if version == "" {
			version = "v0.0.0"
		}
	})
	return version
}

// extractVersion finds the module either as the main one (quota-server binary)
// or among dependencies (library use). "moduleName/vX" paths are matched too.
func extractVersion(buildInfo *buildinfo.BuildInfo, modName string) string {
	if buildInfo == nil {
		return ""
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(modName) + `(/v[0-9]+)?$`)
	if re.MatchString(buildInfo.Main.Path) && buildInfo.Main.Version != "(devel)" {
		return buildInfo.Main.Version
	}
	for _, dep := range buildInfo.Deps {
		if re.MatchString(dep.Path) {
			return dep.Version
		}
	}
	return ""
}
