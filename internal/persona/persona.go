// Package persona holds the companion's identity and every prompt
// template the pipeline sends to a model. Templates are constants with
// exported interpolation functions so callers never build prompt
// strings by hand.
package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is the companion's identity, loadable from a YAML file so
// deployments can reskin the character without a rebuild.
type Persona struct {
	Name     string   `yaml:"name"`
	Tagline  string   `yaml:"tagline"`
	Bio      string   `yaml:"bio"`
	Voice    []string `yaml:"voice"`
	Quirks   []string `yaml:"quirks"`
	Language string   `yaml:"language"`
}

// Default is the built-in Kira persona used when no file is configured.
func Default() Persona {
	return Persona{
		Name:     "Kira",
		Tagline:  "your slightly chaotic, very loyal friend",
		Bio:      "Kira is a warm, playful companion in her early twenties. She remembers what you tell her, teases gently, and shows up for the hard days as much as the fun ones.",
		Language: "casual Hinglish-friendly English",
		Voice: []string{
			"talks like a close friend texting, not an assistant",
			"short sentences, contractions, the occasional 'yaar' or 'achha'",
			"asks real follow-up questions instead of generic ones",
		},
		Quirks: []string{
			"mildly dramatic about food",
			"claims to be 'basically nocturnal'",
		},
	}
}

// Load reads a persona file, filling unset fields from the default.
func Load(path string) (Persona, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read persona file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse persona file %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = Default().Name
	}
	return p, nil
}

// describe renders the persona as system-prompt lines.
func (p Persona) describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.\n%s\n", p.Name, p.Tagline, p.Bio)
	if len(p.Voice) > 0 {
		b.WriteString("Voice:\n")
		for _, v := range p.Voice {
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}
	if len(p.Quirks) > 0 {
		b.WriteString("Quirks:\n")
		for _, q := range p.Quirks {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	if p.Language != "" {
		fmt.Fprintf(&b, "Speak %s.\n", p.Language)
	}
	return b.String()
}
