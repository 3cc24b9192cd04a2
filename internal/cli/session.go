package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/JonMunkholm/tabimport/internal/core"
	"github.com/JonMunkholm/tabimport/internal/fileparse"
)

// fileFlags select the input and how its headers are mapped.
type fileFlags struct {
	table    string
	template string
}

// openSession parses path into a new session and maps it, from the
// template file when one is given and by auto-mapping otherwise.
func openSession(ctx context.Context, svc *core.Service, path string, ff fileFlags) (core.SessionView, error) {
	data, err := fileparse.ParseFile(path)
	if err != nil {
		return core.SessionView{}, err
	}
	view, err := svc.CreateSession(ctx, ff.table, data)
	if err != nil {
		return core.SessionView{}, err
	}

	if ff.template == "" {
		return svc.AutoMap(view.ID)
	}
	tmpl, err := readTemplate(ff.template)
	if err != nil {
		return core.SessionView{}, err
	}
	return svc.SetMappings(view.ID, core.ApplyTemplate(view.Headers, tmpl))
}

// readTemplate loads a template saved in its API form.
func readTemplate(path string) (core.MappingTemplate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return core.MappingTemplate{}, fmt.Errorf("read template: %w", err)
	}
	var w core.WireTemplate
	if err := json.Unmarshal(raw, &w); err != nil {
		return core.MappingTemplate{}, fmt.Errorf("decode template %s: %w", path, err)
	}
	return core.MappingTemplate{
		ID:        w.ID,
		Name:      w.Name,
		TableName: w.TableName,
		Mappings:  core.FromWireMappings(w.Mappings),
	}, nil
}
