/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package server

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-quota/config"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfgData string
		wantCfg *Config
		wantErr string
	}{
		{
			name:    "defaults",
			cfgData: ``,
			wantCfg: NewDefaultConfig(),
		},
		{
			name: "all values",
			cfgData: `
server:
  address: 127.0.0.1:9090
  errorDomain: Gateway
  timeouts:
    read: 1s
    write: 2s
    idle: 3s
    shutdown: 4s
  middleware:
    dryRun: true
    backlogLimit: 10
    backlogTimeout: 500ms
`,
			wantCfg: &Config{
				Address:     "127.0.0.1:9090",
				ErrorDomain: "Gateway",
				Timeouts: TimeoutsConfig{
					Read:     config.TimeDuration(time.Second),
					Write:    config.TimeDuration(2 * time.Second),
					Idle:     config.TimeDuration(3 * time.Second),
					Shutdown: config.TimeDuration(4 * time.Second),
				},
				Middleware: MiddlewareConfig{
					DryRun:         true,
					BacklogLimit:   10,
					BacklogTimeout: config.TimeDuration(500 * time.Millisecond),
				},
			},
		},
		{
			name: "negative timeout",
			cfgData: `
server:
  timeouts:
    shutdown: -1s
`,
			wantErr: "server.timeouts.shutdown: should be >= 0",
		},
		{
			name: "negative backlog limit",
			cfgData: `
server:
  middleware:
    backlogLimit: -1
`,
			wantErr: "server.middleware.backlogLimit: should be >= 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, cfg)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantCfg, cfg)
		})
	}
}
