package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"
)

var errEmptyScript = errors.New("script has no lines")

// script is a YAML dialogue script.
//
//	title: Tavern
//	speakers:
//	  guard: Captain Rhys
//	lines:
//	  - at: 1.5s
//	    speaker: guard
//	    text: Halt!
//	    priority: 1
//	    emotion: angry
//	    traits: [gruff]
type script struct {
	Title    string            `yaml:"title"`
	Speakers map[string]string `yaml:"speakers"`
	Lines    []scriptLine      `yaml:"lines"`
}

type scriptLine struct {
	ID       string        `yaml:"id"`
	At       time.Duration `yaml:"at"`
	Speaker  string        `yaml:"speaker"`
	Text     string        `yaml:"text"`
	Priority *int          `yaml:"priority"`
	Emotion  string        `yaml:"emotion"`
	Traits   []string      `yaml:"traits"`
}

func loadScript(path string) (*script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read script: %w", err)
	}
	return parseScript(data)
}

// parseScript decodes and validates a script. Lines are ordered by their
// start offset; lines sharing an offset keep file order.
func parseScript(data []byte) (*script, error) {
	var s script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unable to parse script: %w", err)
	}
	if len(s.Lines) == 0 {
		return nil, errEmptyScript
	}

	ids := make(map[string]int)
	for i, l := range s.Lines {
		n := i + 1
		switch {
		case strings.TrimSpace(l.Speaker) == "":
			return nil, fmt.Errorf("line %d: speaker is required", n)
		case strings.TrimSpace(l.Text) == "":
			return nil, fmt.Errorf("line %d: text is required", n)
		case l.At < 0:
			return nil, fmt.Errorf("line %d: at must not be negative", n)
		}
		if l.ID != "" {
			if prev, ok := ids[l.ID]; ok {
				return nil, fmt.Errorf("line %d: id %q already used on line %d", n, l.ID, prev)
			}
			ids[l.ID] = n
		}
	}

	sort.SliceStable(s.Lines, func(i, j int) bool {
		return s.Lines[i].At < s.Lines[j].At
	})
	return &s, nil
}

// speakers returns the distinct speaker ids in order of first appearance.
func (s *script) speakers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range s.Lines {
		if !seen[l.Speaker] {
			seen[l.Speaker] = true
			out = append(out, l.Speaker)
		}
	}
	return out
}

// filterSpeakers keeps the lines whose speaker fuzzy-matches any of the
// patterns. Display names are matched too.
func (s *script) filterSpeakers(patterns []string) (*script, error) {
	if len(patterns) == 0 {
		return s, nil
	}

	ids := s.speakers()
	targets := make([]string, len(ids))
	for i, id := range ids {
		targets[i] = id
		if name := s.Speakers[id]; name != "" {
			targets[i] = id + " " + name
		}
	}

	keep := make(map[string]bool)
	for _, p := range patterns {
		for _, m := range fuzzy.Find(p, targets) {
			keep[ids[m.Index]] = true
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("no speaker matches %s", strings.Join(patterns, ", "))
	}

	out := *s
	out.Lines = nil
	for _, l := range s.Lines {
		if keep[l.Speaker] {
			out.Lines = append(out.Lines, l)
		}
	}
	return &out, nil
}

// duration is the start offset of the last line.
func (s *script) duration() time.Duration {
	if len(s.Lines) == 0 {
		return 0
	}
	return s.Lines[len(s.Lines)-1].At
}
