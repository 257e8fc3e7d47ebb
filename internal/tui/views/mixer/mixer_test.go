package mixer

import (
	"math"
	"strings"
	"testing"

	"github.com/obsmirror/obsmirror/internal/obs"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		db   float64
		want float64
	}{
		{0, 1},
		{6, 1},
		{-30, 0.5},
		{-60, 0},
		{-90, 0},
		{math.Inf(-1), 0},
	}
	for _, tt := range tests {
		if got := Level(tt.db); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Level(%v) = %v, want %v", tt.db, got, tt.want)
		}
	}
}

func TestMutedTargetsZero(t *testing.T) {
	c := Channel{Muted: true, VolumeDB: 0}
	if c.Target() != 0 {
		t.Errorf("muted target = %v, want 0", c.Target())
	}
}

func TestAnimateSettles(t *testing.T) {
	m := New()
	m.SetInputs([]obs.AudioInputSnapshot{{UUID: "mic", Name: "Mic", VolumeDB: -30}})

	if !m.Animate() {
		t.Fatal("first frame should be moving")
	}
	for i := 0; i < 10*FPS && m.Animate(); i++ {
	}
	if m.Animate() {
		t.Fatal("meter should settle")
	}
	if got := m.Channels[0].pos; got != 0.5 {
		t.Errorf("settled pos = %v, want 0.5", got)
	}
}

func TestSetInputsKeepsAnimation(t *testing.T) {
	m := New()
	m.SetInputs([]obs.AudioInputSnapshot{{UUID: "mic", VolumeDB: 0}})
	m.Animate()
	pos := m.Channels[0].pos

	m.SetInputs([]obs.AudioInputSnapshot{
		{UUID: "desk", VolumeDB: 0},
		{UUID: "mic", VolumeDB: -10},
	})
	if m.Channels[1].pos != pos {
		t.Errorf("mic pos = %v, want %v", m.Channels[1].pos, pos)
	}
	if m.Channels[0].pos != 0 {
		t.Errorf("new channel pos = %v, want 0", m.Channels[0].pos)
	}
}

func TestSelectionClampedOnShrink(t *testing.T) {
	m := New()
	m.SetInputs([]obs.AudioInputSnapshot{{UUID: "a"}, {UUID: "b"}, {UUID: "c"}})
	m.Selected = 2
	m.SetInputs([]obs.AudioInputSnapshot{{UUID: "a"}})
	if m.Selected != 0 {
		t.Errorf("selected = %d, want 0", m.Selected)
	}
	m.SetInputs(nil)
	if _, ok := m.Current(); ok {
		t.Error("empty mixer should have no current channel")
	}
}

func TestView(t *testing.T) {
	m := New()
	m.Width = 100
	if !strings.Contains(m.View(), "No audio inputs") {
		t.Error("empty mixer should say so")
	}
	m.SetInputs([]obs.AudioInputSnapshot{
		{UUID: "mic", Name: "Mic", VolumeDB: -12.5},
		{UUID: "desk", Name: "Desktop Audio", Muted: true},
	})
	v := m.View()
	for _, want := range []string{"Mic", "-12.5 dB", "Desktop Audio", "MUTED"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
