// Package obsproc finds OBS processes running on this machine.
package obsproc

import (
	"context"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

var obsNames = map[string]bool{
	"obs":            true,
	"obs64.exe":      true,
	"obs32.exe":      true,
	"obs-studio":     true,
	"obs.exe":        true,
	"com.obsproject": true,
}

// Process is a running OBS instance.
type Process struct {
	PID  int32  `yaml:"pid"`
	Name string `yaml:"name"`
}

// IsOBS reports whether a process name belongs to OBS Studio.
func IsOBS(name string) bool {
	return obsNames[strings.ToLower(strings.TrimSpace(name))]
}

// Find lists running OBS processes ordered by pid. Processes that exit
// or deny access while being inspected are skipped.
func Find(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var found []Process
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if IsOBS(name) {
			found = append(found, Process{PID: p.Pid, Name: name})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].PID < found[j].PID })
	return found, nil
}

// Running reports whether any OBS process is running.
func Running(ctx context.Context) (bool, error) {
	found, err := Find(ctx)
	return len(found) > 0, err
}
