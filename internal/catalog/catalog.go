package catalog

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ad/go-rescue-academy/internal/models"
)

var ErrModuleNotFound = errors.New("module not found")

// CycleError reports a prerequisite cycle; Path starts and ends with the same id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("prerequisite cycle: %s", strings.Join(e.Path, " -> "))
}

// ValidationError collects every integrity problem found while loading.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog integrity: %s", strings.Join(e.Problems, "; "))
}

// Catalog is the validated, read-only set of training modules.
type Catalog struct {
	modules []*models.Module
	byID    map[string]*models.Module
}

// New validates modules and builds a catalog. A catalog that fails
// validation is never returned.
func New(modules []*models.Module) (*Catalog, error) {
	if err := Validate(modules); err != nil {
		return nil, err
	}

	c := &Catalog{
		modules: modules,
		byID:    make(map[string]*models.Module, len(modules)),
	}
	for _, m := range modules {
		c.byID[m.ID] = m
	}

	log.Printf("[CATALOG] Loaded %d modules", len(modules))
	return c, nil
}

func (c *Catalog) GetModule(id string) (*models.Module, error) {
	m, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	return m, nil
}

// ListModules returns summaries in authoring order; an empty category lists everything.
func (c *Catalog) ListModules(category string) []models.ModuleSummary {
	var summaries []models.ModuleSummary
	for _, m := range c.modules {
		if category != "" && !strings.EqualFold(m.Category, category) {
			continue
		}
		summaries = append(summaries, m.Summary())
	}
	return summaries
}

func (c *Catalog) Modules() []*models.Module {
	return c.modules
}

func (c *Catalog) Len() int {
	return len(c.modules)
}

func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var categories []string
	for _, m := range c.modules {
		if m.Category == "" || seen[m.Category] {
			continue
		}
		seen[m.Category] = true
		categories = append(categories, m.Category)
	}
	return categories
}
