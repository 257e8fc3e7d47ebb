package debug

import (
	"errors"
	"strings"
	"testing"

	"github.com/obsmirror/obsmirror/internal/obs"
)

func TestEntryText(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{"volume", Entry{Source: SourceMirror, Change: obs.ChangeInputVolume, Subject: "Mic", Detail: "-12.0 dB"}, "volume Mic -12.0 dB"},
		{"session", Entry{Source: SourceMirror, Change: obs.ChangeState, Detail: "ready"}, "session ready"},
		{"item", Entry{Source: SourceMirror, Change: obs.ChangeSceneItem, Subject: "Logo", Detail: "hidden in Intro"}, "source Logo hidden in Intro"},
		{"folded", Entry{Source: SourceAction, Subject: "toggle mute Mic", Count: 3}, "toggle mute Mic ×3"},
		{"note", Entry{Source: SourceProcess, Detail: "process check failed"}, "process check failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChangeFallsBackToID(t *testing.T) {
	m := New()
	m.Change(obs.Change{Kind: obs.ChangeInputMute, ID: "mic-uuid"}, "", "")
	m.Change(obs.Change{Kind: obs.ChangeStream, ID: "stream"}, "", "live")

	entries := m.Entries()
	if got := entries[0].Subject; got != "mic-uuid" {
		t.Errorf("Subject = %q, want the change ID", got)
	}
	if got := entries[1].Text(); got != "stream live" {
		t.Errorf("Text() = %q, want the ID left out when the value is known", got)
	}
}

func TestRepeatedChangesFold(t *testing.T) {
	m := New()
	for _, db := range []string{"-10.0 dB", "-11.0 dB", "-12.0 dB"} {
		m.Change(obs.Change{Kind: obs.ChangeInputVolume, ID: "mic"}, "Mic", db)
	}
	m.Change(obs.Change{Kind: obs.ChangeInputVolume, ID: "desk"}, "Desktop", "-3.0 dB")
	m.Change(obs.Change{Kind: obs.ChangeInputMute, ID: "desk"}, "Desktop", "muted")

	entries := m.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Count != 3 || entries[0].Detail != "-12.0 dB" {
		t.Errorf("folded entry = %+v, want count 3 with the latest detail", entries[0])
	}
}

func TestStateChangesDoNotFold(t *testing.T) {
	m := New()
	for _, state := range []string{"connecting", "loading", "ready"} {
		m.Change(obs.Change{Kind: obs.ChangeState}, "", state)
	}
	if n := len(m.Entries()); n != 3 {
		t.Errorf("entries = %d, want every transition kept", n)
	}
}

func TestActionErrorsAreSeparate(t *testing.T) {
	m := New()
	m.Action("start stream", nil)
	m.Action("start stream", errors.New("obs: client not ready"))

	entries := m.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Source != SourceAction || entries[1].Source != SourceError {
		t.Errorf("sources = %s, %s", entries[0].Source, entries[1].Source)
	}
	if entries[1].Detail != "obs: client not ready" {
		t.Errorf("error detail = %q", entries[1].Detail)
	}
}

func TestFilter(t *testing.T) {
	m := New()
	m.Change(obs.Change{Kind: obs.ChangeStream}, "", "live")
	m.Action("stop stream", nil)
	m.Action("switch to BRB", errors.New("boom"))
	m.Note(SourceProcess, "OBS process found")

	want := []Source{SourceMirror, SourceAction, SourceError, SourceProcess, ""}
	for _, w := range want {
		if got := m.CycleFilter(); got != w {
			t.Fatalf("CycleFilter() = %q, want %q", got, w)
		}
		entries := m.Entries()
		if w == "" {
			if len(entries) != 4 {
				t.Errorf("unfiltered entries = %d, want 4", len(entries))
			}
			continue
		}
		if len(entries) != 1 || entries[0].Source != w {
			t.Errorf("filter %q gave %+v", w, entries)
		}
	}

	counts := m.Counts()
	if counts[SourceMirror] != 1 || counts[SourceError] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
}

func TestMaxEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Note(SourceMirror, strings.Repeat("x", i+1))
	}
	if n := len(m.Entries()); n != maxEntries {
		t.Errorf("entries = %d, want %d", n, maxEntries)
	}
}

func TestScrollStaysWithinFilter(t *testing.T) {
	m := New()
	for i := 0; i < 10; i++ {
		m.Note(SourceProcess, strings.Repeat("p", i+1))
	}
	m.Action("reconnect", nil)
	m.Action("toggle Logo", nil)

	m.ScrollUp(100)
	if m.Offset() != 11 {
		t.Errorf("unfiltered offset = %d, want 11", m.Offset())
	}

	m.CycleFilter() // obs
	m.CycleFilter() // act
	if m.Offset() != 0 {
		t.Error("changing the filter should reset the scroll")
	}
	m.ScrollUp(100)
	if m.Offset() != 1 {
		t.Errorf("filtered offset = %d, want 1", m.Offset())
	}
	m.ScrollDown(5)
	if m.Offset() != 0 {
		t.Errorf("offset = %d after ScrollDown, want 0", m.Offset())
	}

	m.ScrollUp(1)
	m.Action("mute", nil)
	if m.Offset() != 0 {
		t.Error("recording should scroll back to the bottom")
	}
}

func TestView(t *testing.T) {
	m := New()
	if v := m.View(100, 20); !strings.Contains(v, "No events") {
		t.Error("empty log should say so")
	}

	m.Change(obs.Change{Kind: obs.ChangeProgramScene, ID: "b"}, "Gameplay", "")
	m.Action("toggle mute Mic", errors.New("timeout"))
	v := m.View(100, 20)
	for _, want := range []string{"EVENT LOG [all]", "program Gameplay", "timeout", "obs:1", "err:1"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m.CycleFilter()
	if v := m.View(100, 20); strings.Contains(v, "timeout") || !strings.Contains(v, "[obs]") {
		t.Error("filtered view should only show mirror entries")
	}
}
