package llm

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed knowledge.yaml
var defaultKnowledgeYAML []byte

type KnowledgeSection struct {
	Title string   `yaml:"title"`
	Items []string `yaml:"items"`
}

// Knowledge is the static store information every prompt starts with.
type Knowledge struct {
	Name      string             `yaml:"name"`
	Intro     string             `yaml:"intro"`
	Rules     []string           `yaml:"rules"`
	Sections  []KnowledgeSection `yaml:"sections"`
	Reminders []string           `yaml:"reminders"`
	Closing   string             `yaml:"closing"`
}

func ParseKnowledge(data []byte) (*Knowledge, error) {
	var k Knowledge
	if err := yaml.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("error parsing knowledge base: %w", err)
	}

	if strings.TrimSpace(k.Intro) == "" {
		return nil, errors.New("knowledge base must have an intro")
	}
	for _, section := range k.Sections {
		if strings.TrimSpace(section.Title) == "" {
			return nil, errors.New("knowledge base sections must have a title")
		}
	}

	return &k, nil
}

func DefaultKnowledge() *Knowledge {
	k, err := ParseKnowledge(defaultKnowledgeYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded knowledge base is invalid: %v", err))
	}
	return k
}

// LoadKnowledge reads the knowledge base at path, or the embedded default if path is empty.
func LoadKnowledge(path string) (*Knowledge, error) {
	if path == "" {
		return DefaultKnowledge(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading knowledge base %s: %w", path, err)
	}
	return ParseKnowledge(data)
}

func (k *Knowledge) Preamble() string {
	var b strings.Builder

	b.WriteString(strings.TrimSpace(k.Intro))

	for _, rule := range k.Rules {
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(rule))
	}

	for _, section := range k.Sections {
		b.WriteString("\n\n")
		b.WriteString(section.Title)
		b.WriteString(":")
		for _, item := range section.Items {
			b.WriteString("\n* ")
			b.WriteString(item)
		}
	}

	for _, reminder := range k.Reminders {
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(reminder))
	}

	if k.Closing != "" {
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(k.Closing))
	}

	return b.String()
}
