package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolution_Valid(t *testing.T) {
	assert.True(t, Resolution("2K").Valid())
	assert.True(t, DefaultResolution.Valid())
	assert.False(t, Resolution("8K").Valid())
	assert.False(t, Resolution("2k").Valid(), "大文字小文字は区別する")
}

func TestAspectRatio_Valid(t *testing.T) {
	assert.True(t, AspectRatio("21:9").Valid())
	assert.True(t, DefaultAspectRatio.Valid())
	assert.False(t, AspectRatio("16:10").Valid())
	assert.Len(t, AspectRatios(), 10)
}

func TestRenderLog(t *testing.T) {
	ts := time.Date(2025, 1, 2, 15, 4, 5, 0, time.Local)
	events := []ProgressEvent{
		{Timestamp: ts, Level: LevelInfo, Message: "開始"},
		{Timestamp: ts.Add(time.Second), Level: LevelWarn, Message: "警告"},
	}

	assert.Equal(t, "[15:04:05] 開始\n[15:04:06] 警告\n", RenderLog(events))
	assert.Empty(t, RenderLog(nil))
}

func TestSnapshot_IsolatedFromSourceLog(t *testing.T) {
	log := []ProgressEvent{{Message: "a"}}
	s := NewSnapshot(PhaseCalling, "生成中", log)

	log[0].Message = "changed"
	log = append(log, ProgressEvent{Message: "b"})

	assert.Len(t, s.Log, 1)
	assert.Equal(t, "a", s.Log[0].Message)
	assert.False(t, s.Terminal())
}

func TestSnapshot_Result(t *testing.T) {
	s := Snapshot{
		Phase:   PhaseSuccess,
		Status:  "ok",
		Images:  []string{"x.png"},
		History: []string{"x.png", "y.png"},
	}

	res := s.Result()

	assert.True(t, s.Terminal())
	assert.Equal(t, []string{"x.png"}, res.Images)
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, []string{"x.png", "y.png"}, res.History)
}
