package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/doganlap/shahin-grc/modules/catalog/domain/ports"
	"github.com/doganlap/shahin-grc/modules/catalog/domain/types"
	"github.com/doganlap/shahin-grc/modules/catalog/services"
)

// File is the on-disk catalog seed. Objectives land as-is; controls go
// through the publish path so version history stays consistent.
type File struct {
	Version    int         `yaml:"version"`
	Objectives []Objective `yaml:"objectives"`
	Controls   []Control   `yaml:"controls"`
}

type Objective struct {
	Code       string `yaml:"code"`
	DomainCode string `yaml:"domain_code"`
	Statement  string `yaml:"statement"`
}

type Control struct {
	Code             string `yaml:"code"`
	ObjectiveCode    string `yaml:"objective_code"`
	Name             string `yaml:"name"`
	Statement        string `yaml:"statement"`
	Type             string `yaml:"type"`
	Nature           string `yaml:"nature"`
	Frequency        string `yaml:"frequency"`
	RiskRating       string `yaml:"risk_rating"`
	EffectiveDate    string `yaml:"effective_date"`
	DefaultCondition string `yaml:"default_condition"`
}

func Parse(raw []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("parse seed: %w", err)
	}
	if f.Version != 1 {
		return File{}, fmt.Errorf("parse seed: unsupported version %d", f.Version)
	}
	return f, nil
}

func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed: %w", err)
	}
	return Parse(raw)
}

type Loader struct {
	Store   ports.CatalogStore
	Catalog services.CatalogService
	Log     zerolog.Logger
}

// Apply upserts objectives then publishes each control as a new version.
// Re-running the same seed bumps control versions; it never edits history.
func (l Loader) Apply(ctx context.Context, tenantID string, f File) error {
	for _, o := range f.Objectives {
		err := l.Store.InsertObjective(ctx, tenantID, types.Objective{
			Code:       o.Code,
			DomainCode: o.DomainCode,
			Statement:  o.Statement,
			Active:     true,
		})
		if err != nil {
			return fmt.Errorf("seed objective %s: %w", o.Code, err)
		}
		l.Log.Info().Str("objective", o.Code).Msg("seeded objective")
	}
	for _, c := range f.Controls {
		published, err := l.Catalog.Publish(ctx, tenantID, types.Control{
			Code:             c.Code,
			ObjectiveCode:    c.ObjectiveCode,
			Name:             c.Name,
			Statement:        c.Statement,
			Type:             types.ControlType(c.Type),
			Nature:           types.ControlNature(c.Nature),
			Frequency:        c.Frequency,
			RiskRating:       c.RiskRating,
			EffectiveDate:    c.EffectiveDate,
			DefaultCondition: c.DefaultCondition,
		})
		if err != nil {
			return fmt.Errorf("seed control %s: %w", c.Code, err)
		}
		l.Log.Info().Str("control", published.Code).Int("version", published.Version).Msg("seeded control")
	}
	return nil
}
