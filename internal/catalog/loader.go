// Package catalog reads the plan catalog file used to seed the database.
//
// The file is a YAML list:
//
//	plans:
//	  - id: basic-30
//	    name: Basic
//	    price: "100"
//	    duration: 30
//	    returnPercentage: "10"
//
// Money fields are strings so no precision is lost to floating point.
package catalog

import (
	"bytes"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/core-coin/stakeplan/internal/models"
)

type planEntry struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	Price            string `yaml:"price"`
	Duration         int    `yaml:"duration"`
	ReturnPercentage string `yaml:"returnPercentage"`
	Description      string `yaml:"description"`
	Logo             string `yaml:"logo"`
	SortOrder        *int   `yaml:"sortOrder"`
}

type file struct {
	Plans []planEntry `yaml:"plans"`
}

// Load reads and validates the catalog at path.
func Load(path string) ([]*models.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a catalog. Plans without a sortOrder keep their position in the file.
func Parse(data []byte) ([]*models.Plan, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: failed to decode catalog: %s", models.ErrValidation, err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("%w: catalog has no plans", models.ErrValidation)
	}

	seen := make(map[string]bool, len(f.Plans))
	plans := make([]*models.Plan, 0, len(f.Plans))
	for i, entry := range f.Plans {
		plan, err := entry.toPlan(i)
		if err != nil {
			return nil, err
		}
		if seen[plan.ID] {
			return nil, fmt.Errorf("%w: duplicate plan id %s", models.ErrValidation, plan.ID)
		}
		seen[plan.ID] = true
		plans = append(plans, plan)
	}
	return plans, nil
}

func (e planEntry) toPlan(index int) (*models.Plan, error) {
	price, err := parseDecimal(e.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: plan %q: invalid price: %s", models.ErrValidation, e.ID, err)
	}
	rate, err := parseDecimal(e.ReturnPercentage)
	if err != nil {
		return nil, fmt.Errorf("%w: plan %q: invalid returnPercentage: %s", models.ErrValidation, e.ID, err)
	}

	plan := &models.Plan{
		ID:               e.ID,
		Name:             e.Name,
		Price:            price,
		Duration:         e.Duration,
		ReturnPercentage: rate,
		Description:      e.Description,
		Logo:             e.Logo,
		SortOrder:        index,
	}
	if e.SortOrder != nil {
		plan.SortOrder = *e.SortOrder
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("value is required")
	}
	return decimal.NewFromString(s)
}
