package catalog

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ad/go-rescue-academy/internal/models"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Modules []moduleFile `yaml:"modules"`
}

type moduleFile struct {
	ID               string         `yaml:"id"`
	Title            string         `yaml:"title"`
	Category         string         `yaml:"category,omitempty"`
	Kind             string         `yaml:"kind"`
	EstimatedMinutes int            `yaml:"estimated_minutes,omitempty"`
	PassingScore     int            `yaml:"passing_score,omitempty"`
	Requires         [][]string     `yaml:"requires,omitempty,flow"`
	Content          string         `yaml:"content,omitempty"`
	Questions        []questionFile `yaml:"questions,omitempty"`
	Items            []itemFile     `yaml:"items,omitempty"`
}

type questionFile struct {
	ID      string      `yaml:"id"`
	Text    string      `yaml:"text"`
	Kind    string      `yaml:"kind"`
	Options []string    `yaml:"options,omitempty,flow"`
	Correct interface{} `yaml:"correct"`
	Points  *int        `yaml:"points,omitempty"`
}

type itemFile struct {
	ID          string `yaml:"id"`
	Text        string `yaml:"text"`
	Description string `yaml:"description,omitempty"`
}

// Load reads a YAML catalog from disk and validates it.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	modules, err := Parse(f)
	if err != nil {
		return nil, err
	}
	return New(modules)
}

// Parse decodes YAML into modules without validating them.
func Parse(r io.Reader) ([]*models.Module, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	modules := make([]*models.Module, 0, len(file.Modules))
	for _, mf := range file.Modules {
		m := &models.Module{
			ID:                mf.ID,
			Title:             mf.Title,
			Category:          mf.Category,
			Content:           mf.Content,
			Kind:              models.ModuleKind(mf.Kind),
			EstimatedDuration: time.Duration(mf.EstimatedMinutes) * time.Minute,
			PassingScore:      mf.PassingScore,
			Prerequisites:     models.Prerequisites(mf.Requires),
		}

		for _, qf := range mf.Questions {
			kind := models.QuestionKind(qf.Kind)
			correct, err := decodeCorrect(kind, qf.Correct)
			if err != nil {
				return nil, fmt.Errorf("question %s: %w", qf.ID, err)
			}
			points := 1
			if qf.Points != nil {
				points = *qf.Points
			}
			m.Questions = append(m.Questions, models.QuizQuestion{
				ID:            qf.ID,
				ModuleID:      m.ID,
				Text:          qf.Text,
				Kind:          kind,
				Options:       qf.Options,
				CorrectAnswer: correct,
				Points:        points,
			})
		}

		for _, itf := range mf.Items {
			m.ChecklistItems = append(m.ChecklistItems, models.ChecklistItem{
				ID:          itf.ID,
				ModuleID:    m.ID,
				Text:        itf.Text,
				Description: itf.Description,
			})
		}

		modules = append(modules, m)
	}
	return modules, nil
}

// Write encodes modules in the format Parse reads.
func Write(w io.Writer, modules []*models.Module) error {
	file := catalogFile{Modules: make([]moduleFile, 0, len(modules))}
	for _, m := range modules {
		mf := moduleFile{
			ID:               m.ID,
			Title:            m.Title,
			Category:         m.Category,
			Kind:             string(m.Kind),
			EstimatedMinutes: int(m.EstimatedDuration / time.Minute),
			PassingScore:     m.PassingScore,
			Requires:         [][]string(m.Prerequisites),
			Content:          m.Content,
		}
		for _, q := range m.Questions {
			points := q.Points
			qf := questionFile{
				ID:      q.ID,
				Text:    q.Text,
				Kind:    string(q.Kind),
				Options: q.Options,
				Points:  &points,
			}
			switch {
			case q.CorrectAnswer.Choice != nil:
				qf.Correct = *q.CorrectAnswer.Choice
			case q.CorrectAnswer.Truth != nil:
				qf.Correct = *q.CorrectAnswer.Truth
			}
			mf.Questions = append(mf.Questions, qf)
		}
		for _, item := range m.ChecklistItems {
			mf.Items = append(mf.Items, itemFile{ID: item.ID, Text: item.Text, Description: item.Description})
		}
		file.Modules = append(file.Modules, mf)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&file); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return enc.Close()
}

func decodeCorrect(kind models.QuestionKind, raw interface{}) (models.Answer, error) {
	switch v := raw.(type) {
	case int:
		return models.ChoiceAnswer(v), nil
	case bool:
		return models.TruthAnswer(v), nil
	case string:
		return models.ParseAnswer(kind, v)
	case nil:
		return models.Answer{}, fmt.Errorf("missing correct answer")
	default:
		return models.Answer{}, fmt.Errorf("unsupported correct answer %v", raw)
	}
}
