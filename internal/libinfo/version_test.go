/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package libinfo

import (
	"debug/buildinfo"
	"runtime/debug"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		name        string
		buildInfo   *buildinfo.BuildInfo
		wantVersion string
	}{
		{
			name:        "main module",
			buildInfo:   &buildinfo.BuildInfo{Main: debug.Module{Path: moduleName, Version: "v1.4.0"}},
			wantVersion: "v1.4.0",
		},
		{
			name:        "main module, devel build",
			buildInfo:   &buildinfo.BuildInfo{Main: debug.Module{Path: moduleName, Version: "(devel)"}},
			wantVersion: "",
		},
		{
			name: "dependency",
			buildInfo: &buildinfo.BuildInfo{
				Main: debug.Module{Path: "github.com/example/gateway"},
				Deps: []*debug.Module{{Path: moduleName, Version: "v1.2.3"}},
			},
			wantVersion: "v1.2.3",
		},
		{
			name: "dependency, v2",
			buildInfo: &buildinfo.BuildInfo{
				Deps: []*debug.Module{{Path: moduleName + "/v2", Version: "v2.0.0"}},
			},
			wantVersion: "v2.0.0",
		},
		{
			name: "module not found",
			buildInfo: &buildinfo.BuildInfo{
				Deps: []*debug.Module{{Path: moduleName + "-extra", Version: "v1.0.0"}},
			},
			wantVersion: "",
		},
		{
			name:        "nil build info",
			wantVersion: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.wantVersion, extractVersion(tt.buildInfo, moduleName))
		})
	}
}

func TestAddPrometheusVersionLabel(t *testing.T) {
	labels := prometheus.Labels{"instance": "a"}
	got := AddPrometheusVersionLabel(labels)
	require.Equal(t, prometheus.Labels{"instance": "a", PrometheusVersionLabel: GetVersion()}, got)
	require.Len(t, labels, 1)
	require.NotEmpty(t, GetVersion())
}
