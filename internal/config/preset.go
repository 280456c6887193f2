package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/duetvoice/duet/internal/schema"
)

// DefaultPresetPath is relative to the working directory.
var DefaultPresetPath = filepath.Join("Config", "CharacterPreset", "CharacterPreset.json")

// CharacterPreset is a persona: the pinned opening of every conversation and
// the speech and idle settings that go with it.
type CharacterPreset struct {
	Name        string              `json:"name" yaml:"name"`
	YourName    string              `json:"yourName" yaml:"yourName"`
	ChatContent schema.ChatSnapshot `json:"chatContent" yaml:"chatContent"`
	// ExceptTextRegexExpression lists patterns removed from replies before
	// they are spoken.
	ExceptTextRegexExpression []string `json:"exceptTextRegexExpression" yaml:"exceptTextRegexExpression"`
	EnabledPlugins            []string `json:"enabledPlugins" yaml:"enabledPlugins"`
	HotZhWords                string   `json:"hotZhWords" yaml:"hotZhWords"`
	HotRules                  string   `json:"hotRules" yaml:"hotRules"`
	// IdleAskMeTime is in seconds; -1 disables the idle prompt.
	IdleAskMeTime    int    `json:"idleAskMeTime" yaml:"idleAskMeTime"`
	IdleAskMeMessage string `json:"idleAskMeMessage" yaml:"idleAskMeMessage"`
}

// DefaultPreset returns an empty persona with idle prompting disabled.
func DefaultPreset() CharacterPreset {
	return CharacterPreset{
		ChatContent:               schema.ChatSnapshot{Messages: []schema.Message{}},
		ExceptTextRegexExpression: []string{},
		EnabledPlugins:            []string{},
		IdleAskMeTime:             -1,
	}
}

// Content returns the chat content used to seed a conversation. The
// preset's own names fill in when the chat content leaves them empty.
func (p CharacterPreset) Content() schema.ChatSnapshot {
	c := p.ChatContent
	c.CharacterName = firstNonEmpty(c.CharacterName, p.Name, unknownName)
	c.YourName = firstNonEmpty(c.YourName, p.YourName, unknownName)
	return c
}

const unknownName = "未知"

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// LoadPreset reads a preset from a .json, .yaml or .yml file. A missing file
// is created with DefaultPreset() and that preset is returned.
func LoadPreset(path string) (CharacterPreset, error) {
	if path == "" {
		path = DefaultPresetPath
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		p := DefaultPreset()
		if err := SavePreset(p, path); err != nil {
			return CharacterPreset{}, err
		}
		return p, nil
	}
	if err != nil {
		return CharacterPreset{}, fmt.Errorf("read preset %s: %w", path, err)
	}

	p := DefaultPreset()
	if isYAML(path) {
		err = yaml.Unmarshal(data, &p)
	} else {
		err = json.Unmarshal(jsonc.ToJSON(data), &p)
	}
	if err != nil {
		return CharacterPreset{}, fmt.Errorf("parse preset %s: %w", path, err)
	}
	return p, nil
}

// SavePreset writes p in the format implied by the file extension.
func SavePreset(p CharacterPreset, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create preset dir: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(p)
	} else {
		data, err = json.MarshalIndent(p, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("marshal preset: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write preset %s: %w", path, err)
	}
	return nil
}

// ListPresets returns the preset files in dir, sorted by name. A missing
// directory yields an empty list.
func ListPresets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
