package annotation

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Script is the on-disk description of a narrated annotation session: which
// document to show, how long the timeline runs, when to turn pages, and the
// annotations to reveal along the way.
type Script struct {
	Version     string       `yaml:"version"`
	Document    string       `yaml:"document,omitempty"`
	DocumentURL string       `yaml:"document_url,omitempty"`
	Audio       string       `yaml:"audio,omitempty"`
	Duration    float64      `yaml:"duration"`
	Pages       []PageCue    `yaml:"pages,omitempty"`
	Annotations []Annotation `yaml:"annotations"`
}

// PageCue schedules a page turn: from Time onward, Page is the active page.
type PageCue struct {
	Time float64 `yaml:"time"`
	Page int     `yaml:"page"`
}

// PageAt returns the active page at time t, defaulting to page 1 before the
// first cue. Cues are assumed sorted by time.
func (s *Script) PageAt(t float64) int {
	page := 1
	for _, cue := range s.Pages {
		if cue.Time > t {
			break
		}
		page = cue.Page
	}
	return page
}

// TotalDuration returns the script duration, falling back to the end of the
// last annotation window when no explicit duration is set.
func (s *Script) TotalDuration() float64 {
	if s.Duration > 0 {
		return s.Duration
	}
	var max float64
	for _, a := range s.Annotations {
		if a.End > max {
			max = a.End
		}
	}
	return max
}

// ReadScript reads a script from a YAML file and sorts its page cues.
func ReadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}

	sort.SliceStable(script.Pages, func(i, j int) bool {
		return script.Pages[i].Time < script.Pages[j].Time
	})
	return &script, nil
}

// WriteScript writes a script to a YAML file.
func WriteScript(script *Script, path string) error {
	data, err := yaml.Marshal(script)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
