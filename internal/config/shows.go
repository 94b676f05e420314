package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"setlist-quiz-service/internal/domain"
)

// showTimeLayout is the wall-clock layout used for show starts; the zone comes from Timezone.
const showTimeLayout = "2006-01-02T15:04:05"

// ShowsFile is the on-disk registry: show schedule, answer keys and the song catalog.
type ShowsFile struct {
	Shows      []ShowDef               `yaml:"shows"`
	AnswerKeys map[string]AnswerKeyDef `yaml:"answer_keys"`
	Catalog    []SongDef               `yaml:"catalog"`
}

type ShowDef struct {
	Slug           string `yaml:"slug"`
	QuizID         int64  `yaml:"quiz_id"`
	Start          string `yaml:"start"`
	Timezone       string `yaml:"timezone"`
	ScoringDelay   string `yaml:"scoring_delay"`
	ScoringEnabled bool   `yaml:"scoring_enabled"`
}

type AnswerKeyDef struct {
	Q1       Accepted `yaml:"q1"`
	Q2       Accepted `yaml:"q2"`
	Q6       Accepted `yaml:"q6"`
	Q7       Accepted `yaml:"q7"`
	Surprise SongList `yaml:"surprise"`
}

type SongDef struct {
	Title string `yaml:"title"`
	Album string `yaml:"album"`
}

// Accepted decodes either a single string or a list of accepted strings.
type Accepted []string

func (a *Accepted) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*a = Accepted{s}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*a = many
		return nil
	}
	return fmt.Errorf("line %d: answer must be a string or a list of strings", value.Line)
}

// SongList decodes a list of titles. Anything that is not a list decodes as empty.
type SongList []string

func (l *SongList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		*l = nil
		return nil
	}
	var titles []string
	if err := value.Decode(&titles); err != nil {
		return err
	}
	*l = titles
	return nil
}

// LoadShows reads the shows file at path.
func LoadShows(path string) (ShowsFile, error) {
	file := ShowsFile{}
	data, err := os.ReadFile(path)
	if err != nil {
		return file, err
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, err
	}
	return file, nil
}

// QuizConfigs resolves every show definition against its timezone, in file order.
func (f ShowsFile) QuizConfigs() ([]domain.QuizConfig, error) {
	configs := make([]domain.QuizConfig, 0, len(f.Shows))
	for _, def := range f.Shows {
		cfg, err := def.QuizConfig()
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (d ShowDef) QuizConfig() (domain.QuizConfig, error) {
	if d.Slug == "" {
		return domain.QuizConfig{}, fmt.Errorf("show with quiz_id %d has no slug", d.QuizID)
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return domain.QuizConfig{}, fmt.Errorf("show %s: timezone %q: %w", d.Slug, d.Timezone, err)
	}
	start, err := parseShowStart(d.Start, loc)
	if err != nil {
		return domain.QuizConfig{}, fmt.Errorf("show %s: start %q: %w", d.Slug, d.Start, err)
	}
	var delay time.Duration
	if d.ScoringDelay != "" {
		delay, err = time.ParseDuration(d.ScoringDelay)
		if err != nil {
			return domain.QuizConfig{}, fmt.Errorf("show %s: scoring_delay: %w", d.Slug, err)
		}
		if delay < 0 {
			return domain.QuizConfig{}, fmt.Errorf("show %s: scoring_delay must not be negative", d.Slug)
		}
	}
	return domain.QuizConfig{
		Slug:           d.Slug,
		QuizID:         d.QuizID,
		Start:          start,
		Timezone:       d.Timezone,
		Location:       loc,
		ScoringDelay:   delay,
		ScoringEnabled: d.ScoringEnabled,
	}, nil
}

func parseShowStart(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	return time.ParseInLocation(showTimeLayout, raw, loc)
}

// AnswerKeyMap converts the file's answer keys to domain values keyed by slug.
func (f ShowsFile) AnswerKeyMap() map[string]domain.AnswerKey {
	keys := make(map[string]domain.AnswerKey, len(f.AnswerKeys))
	for slug, def := range f.AnswerKeys {
		keys[slug] = def.AnswerKey()
	}
	return keys
}

func (d AnswerKeyDef) AnswerKey() domain.AnswerKey {
	single := make(map[string]domain.Choice, 4)
	for question, accepted := range map[string]Accepted{
		domain.Q1: d.Q1,
		domain.Q2: d.Q2,
		domain.Q6: d.Q6,
		domain.Q7: d.Q7,
	} {
		if accepted == nil {
			continue
		}
		single[question] = domain.Choice{Values: []string(accepted)}
	}
	surprise := []string(d.Surprise)
	if surprise == nil {
		surprise = []string{}
	}
	return domain.AnswerKey{
		SingleChoice: single,
		Surprise:     surprise,
	}
}

func (f ShowsFile) Songs() []domain.Song {
	songs := make([]domain.Song, 0, len(f.Catalog))
	for _, s := range f.Catalog {
		songs = append(songs, domain.Song{Title: s.Title, Album: s.Album})
	}
	return songs
}
