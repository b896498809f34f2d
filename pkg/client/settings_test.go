package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facerecog/pkg/wire"
)

func TestNewSettings(t *testing.T) {
	s, err := NewSettings("http://localhost:8080/", "", time.Second)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", s.BaseURL())
	assert.Equal(t, wire.DefaultRequestPath, s.RequestPath())
	assert.Equal(t, "http://localhost:8080/recog/detectIdentify", s.Endpoint())
	assert.Equal(t, time.Second, s.SampleInterval())
}

func TestSettingsValidation(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		interval time.Duration
		wantErr  error
	}{
		{name: "no scheme", url: "localhost:8080", interval: time.Second, wantErr: ErrInvalidURL},
		{name: "ftp", url: "ftp://host", interval: time.Second, wantErr: ErrInvalidURL},
		{name: "no host", url: "http://", interval: time.Second, wantErr: ErrInvalidURL},
		{name: "zero interval", url: "http://h", interval: 0, wantErr: ErrInvalidInterval},
		{name: "negative interval", url: "http://h", interval: -time.Second, wantErr: ErrInvalidInterval},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSettings(tc.url, "", tc.interval)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestSettingsLiveUpdates(t *testing.T) {
	s, err := NewSettings("http://a:1", "", time.Second)
	require.NoError(t, err)

	require.NoError(t, s.SetSampleInterval(250*time.Millisecond))
	assert.Equal(t, 250*time.Millisecond, s.SampleInterval())

	require.Error(t, s.SetSampleInterval(0))
	assert.Equal(t, 250*time.Millisecond, s.SampleInterval(), "rejected value leaves the old one")

	require.NoError(t, s.SetBaseURL("https://b:2"))
	s.SetRequestPath("recog/detect")
	assert.Equal(t, "https://b:2/recog/detect", s.Endpoint())

	require.Error(t, s.SetBaseURL("::nope"))
	assert.Equal(t, "https://b:2", s.BaseURL())
}
