/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var errTest = errors.New("test error")

func TestTimeDuration(t *testing.T) {
	type holder struct {
		Timeout TimeDuration `json:"timeout" yaml:"timeout"`
	}

	var h holder
	require.NoError(t, json.Unmarshal([]byte(`{"timeout":"1m30s"}`), &h))
	require.Equal(t, TimeDuration(90*time.Second), h.Timeout)

	require.NoError(t, yaml.Unmarshal([]byte("timeout: 1000"), &h))
	require.Equal(t, TimeDuration(1000), h.Timeout)

	require.Error(t, yaml.Unmarshal([]byte("timeout: soon"), &h))

	data, err := json.Marshal(holder{Timeout: TimeDuration(time.Minute)})
	require.NoError(t, err)
	require.JSONEq(t, `{"timeout":"1m0s"}`, string(data))
}

func TestByteSize(t *testing.T) {
	type holder struct {
		Size ByteSize `json:"size" yaml:"size"`
	}

	var h holder
	require.NoError(t, yaml.Unmarshal([]byte("size: 10K"), &h))
	require.Equal(t, ByteSize(10*1024), h.Size)

	require.NoError(t, json.Unmarshal([]byte(`{"size":2048}`), &h))
	require.Equal(t, ByteSize(2048), h.Size)
	require.Equal(t, "2K", h.Size.String())

	require.Error(t, json.Unmarshal([]byte(`{"size":-5}`), &h))
}
