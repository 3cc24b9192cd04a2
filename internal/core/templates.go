package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// TemplateMatchThreshold is the minimum score for a template to be considered a match.
const TemplateMatchThreshold = 0.7

var errNoTemplateStore = errors.New("template store not configured")

// ListTemplates returns the templates saved for a table.
func (s *Service) ListTemplates(ctx context.Context, tableName string) ([]MappingTemplate, error) {
	if s.templates == nil {
		return nil, errNoTemplateStore
	}
	if _, err := s.Table(tableName); err != nil {
		return nil, err
	}
	templates, err := s.templates.List(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// GetTemplate returns one template.
func (s *Service) GetTemplate(ctx context.Context, id string) (MappingTemplate, error) {
	if s.templates == nil {
		return MappingTemplate{}, errNoTemplateStore
	}
	return s.templates.Get(ctx, id)
}

// CreateTemplate saves a named set of mappings for a table.
func (s *Service) CreateTemplate(ctx context.Context, name, tableName string, mappings []ColumnMapping) (MappingTemplate, error) {
	if s.templates == nil {
		return MappingTemplate{}, errNoTemplateStore
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return MappingTemplate{}, fmt.Errorf("%w: template name is required", ErrInvalidInput)
	}
	table, err := s.Table(tableName)
	if err != nil {
		return MappingTemplate{}, err
	}
	if err := CheckMappings(mappings, table); err != nil {
		return MappingTemplate{}, err
	}

	t, err := s.templates.Create(ctx, name, tableName, mappings)
	if err != nil {
		return MappingTemplate{}, fmt.Errorf("create template: %w", err)
	}
	slog.Info("template created", "template", t.ID, "table", tableName, "name", name)
	return t, nil
}

// UpdateTemplate renames a template and replaces its mappings.
func (s *Service) UpdateTemplate(ctx context.Context, id, name string, mappings []ColumnMapping) (MappingTemplate, error) {
	if s.templates == nil {
		return MappingTemplate{}, errNoTemplateStore
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return MappingTemplate{}, fmt.Errorf("%w: template name is required", ErrInvalidInput)
	}

	existing, err := s.templates.Get(ctx, id)
	if err != nil {
		return MappingTemplate{}, err
	}
	table, err := s.Table(existing.TableName)
	if err != nil {
		return MappingTemplate{}, err
	}
	if err := CheckMappings(mappings, table); err != nil {
		return MappingTemplate{}, err
	}

	t, err := s.templates.Update(ctx, id, name, mappings)
	if err != nil {
		return MappingTemplate{}, fmt.Errorf("update template: %w", err)
	}
	return t, nil
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if s.templates == nil {
		return errNoTemplateStore
	}
	if err := s.templates.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// MatchSessionTemplates scores the table's templates against a session's
// headers.
func (s *Service) MatchSessionTemplates(ctx context.Context, id string) ([]TemplateMatch, error) {
	view, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	templates, err := s.ListTemplates(ctx, view.TableName)
	if err != nil {
		return nil, err
	}
	return MatchTemplates(view.Headers, templates), nil
}

// ApplyTemplate maps headers using a template's mappings. Headers are
// matched to template entries ignoring case and surrounding space; headers
// the template does not know stay unmapped, as do later headers that would
// reuse a column.
func ApplyTemplate(headers []string, tmpl MappingTemplate) []ColumnMapping {
	byHeader := make(map[string]ColumnMapping, len(tmpl.Mappings))
	for _, m := range tmpl.Mappings {
		key := headerKey(m.FileHeader)
		if _, dup := byHeader[key]; !dup {
			byHeader[key] = m
		}
	}

	used := make(map[string]bool)
	out := make([]ColumnMapping, len(headers))
	for i, h := range headers {
		m, ok := byHeader[headerKey(h)]
		if !ok || (m.Mapped() && used[m.Target()]) {
			out[i] = Unmapped(h)
			continue
		}
		if m.Mapped() {
			used[m.Target()] = true
		}
		m.FileHeader = h
		out[i] = cloneMappings([]ColumnMapping{m})[0]
	}
	return out
}

// MatchTemplates returns the templates for which at least
// TemplateMatchThreshold of their headers appear in headers, best first.
func MatchTemplates(headers []string, templates []MappingTemplate) []TemplateMatch {
	var matches []TemplateMatch
	for _, t := range templates {
		templateHeaders := make([]string, len(t.Mappings))
		for i, m := range t.Mappings {
			templateHeaders[i] = m.FileHeader
		}
		score := matchTemplateHeaders(headers, templateHeaders)
		if score >= TemplateMatchThreshold {
			matches = append(matches, TemplateMatch{Template: t, MatchScore: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches
}

// matchTemplateHeaders calculates how well file headers match template headers.
func matchTemplateHeaders(fileHeaders, templateHeaders []string) float64 {
	if len(templateHeaders) == 0 {
		return 0
	}

	fileSet := make(map[string]bool, len(fileHeaders))
	for _, h := range fileHeaders {
		fileSet[headerKey(h)] = true
	}

	matched := 0
	for _, h := range templateHeaders {
		if fileSet[headerKey(h)] {
			matched++
		}
	}

	return float64(matched) / float64(len(templateHeaders))
}

func headerKey(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
