package forecast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-models/panguweather/internal/assets"
	"github.com/ai-models/panguweather/internal/field"
)

func TestModelTables(t *testing.T) {
	m := New("/assets", 240, 4)
	assert.Equal(t, "pguw", m.Expver)
	assert.Equal(t, field.Global025, m.Grid)
	assert.Equal(t, []string{"pangu_weather_24.onnx", "pangu_weather_6.onnx"}, m.DownloadFiles)
	assert.Equal(t, assets.DefaultURL, m.DownloadURL)
	assert.Len(t, m.ParamPL, 5)
	assert.Len(t, m.LevelsPL, 13)
	assert.Len(t, m.ParamSfc, 4)
	assert.Equal(t, 4, m.NumThreads)
}

func TestRunTwentyFourHours(t *testing.T) {
	m := smallModel(assetsDir(t, assets.File24, assets.File6), 24)
	host := newFakeHost(m)

	require.NoError(t, m.Run(context.Background(), host))

	// Loaded 24-hour model first, like the file check.
	assert.Equal(t, []string{assets.File24, assets.File6}, host.engine.opened)

	six := host.engine.sessions[assets.File6]
	daily := host.engine.sessions[assets.File24]
	assert.Len(t, six.inputs, 3)
	assert.Len(t, daily.inputs, 1)
	assert.True(t, six.closed)
	assert.True(t, daily.closed)

	assert.Len(t, host.sink.inputs, 69)
	assert.Equal(t, map[int]int{6: 69, 12: 69, 18: 69, 24: 69}, host.sink.perStep())
	assert.Equal(t, []int{6, 12, 18, 24}, host.stepper.steps)
	assert.True(t, host.stepper.done)
}

func TestRunMissingAsset(t *testing.T) {
	m := smallModel(assetsDir(t, assets.File24), 24)
	host := newFakeHost(m)

	err := m.Run(context.Background(), host)
	require.ErrorIs(t, err, assets.ErrMissingAsset)
	assert.Contains(t, err.Error(), assets.File6)

	assert.Zero(t, host.engineCalls)
	assert.Empty(t, host.sink.inputs)
	assert.Empty(t, host.sink.writes)
}

func TestRunMissingParameter(t *testing.T) {
	m := smallModel(assetsDir(t, assets.File24, assets.File6), 24)
	host := newFakeHost(m)
	host.sfc = host.sfc[1:]

	err := m.Run(context.Background(), host)
	require.ErrorIs(t, err, field.ErrMissingField)
	assert.Contains(t, err.Error(), "msl")
	assert.Zero(t, host.engineCalls)
}

func TestRunInvalidLeadTime(t *testing.T) {
	m := smallModel(assetsDir(t, assets.File24, assets.File6), 10)
	err := m.Run(context.Background(), newFakeHost(m))
	assert.ErrorIs(t, err, ErrInvalidLeadTime)
}

func TestRunOpenFailureClosesFirstSession(t *testing.T) {
	m := smallModel(assetsDir(t, assets.File24, assets.File6), 24)
	host := newFakeHost(m)
	delete(host.engine.sessions, assets.File6)
	daily := host.engine.sessions[assets.File24]

	require.Error(t, m.Run(context.Background(), host))
	assert.True(t, daily.closed)
	assert.Empty(t, host.sink.inputs)
}

func TestRunWithoutSink(t *testing.T) {
	m := smallModel(assetsDir(t, assets.File24, assets.File6), 24)
	host := newFakeHost(m)
	host.sink = nil

	err := m.Run(context.Background(), host)
	require.ErrorIs(t, err, ErrNoSink)
	assert.Zero(t, host.engineCalls)
}
