package conversion

import (
	"context"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

// Document is the YAML form of a tenant's rules.
type Document struct {
	Rules []RuleDoc `yaml:"rules"`
}

type RuleDoc struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Active      *bool      `yaml:"active,omitempty"`
	Priority    int        `yaml:"priority"`
	Conditions  Conditions `yaml:"conditions"`
}

// ImportSummary counts the rules written by ImportYAML.
type ImportSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// ParseYAML decodes a rule document, rejecting unknown fields.
func ParseYAML(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return Document{}, errors.Wrap(err, "decoding rules")
	}
	return doc, nil
}

// ImportYAML creates or updates, by name, the rules of the document read from r.
// Every rule is validated before any is written.
func (svc *Service) ImportYAML(ctx context.Context, tenantID string, r io.Reader, validate *validator.Validate) (ImportSummary, error) {
	var sum ImportSummary
	doc, err := ParseYAML(r)
	if err != nil {
		return sum, core.NewValidationError(err)
	}

	seen := make(map[string]bool, len(doc.Rules))
	rules := make([]NewRule, 0, len(doc.Rules))
	for i, rd := range doc.Rules {
		nr := NewRule{
			TenantID:    tenantID,
			Name:        rd.Name,
			Description: rd.Description,
			IsActive:    rd.Active,
			Priority:    rd.Priority,
			Conditions:  rd.Conditions,
		}
		nr.Name = core.CleanString(nr.Name)
		nr.Description = core.CleanString(nr.Description)
		nr.Conditions.clean()
		if nr.IsActive == nil {
			active := true
			nr.IsActive = &active
		}
		if err := validate.Struct(nr); err != nil {
			return sum, errors.Wrapf(err, "rule %d (%s)", i+1, rd.Name)
		}
		if seen[nr.Name] {
			return sum, core.NewValidationError(errors.Errorf("rule %d: duplicate name %q", i+1, nr.Name))
		}
		seen[nr.Name] = true
		rules = append(rules, nr)
	}

	for _, nr := range rules {
		existing, err := svc.repo.GetRuleByName(ctx, tenantID, nr.Name)
		switch {
		case core.IsNotFound(err):
			if _, err := svc.createRule(ctx, nr); err != nil {
				return sum, err
			}
			sum.Created++
		case err != nil:
			return sum, errors.Wrap(err, "getting rule")
		default:
			existing.Description = nr.Description
			existing.IsActive = *nr.IsActive
			existing.Priority = nr.Priority
			existing.Conditions = nr.Conditions
			existing.UpdatedAt = time.Now().UTC()
			if _, err := svc.repo.UpdateRule(ctx, existing); err != nil {
				return sum, errors.Wrap(err, "updating rule")
			}
			sum.Updated++
		}
	}
	return sum, svc.touch(ctx, tenantID)
}

func (svc *Service) createRule(ctx context.Context, nr NewRule) (Rule, error) {
	now := time.Now().UTC()
	r, err := svc.repo.CreateRule(ctx, Rule{
		ID:          uuid.NewString(),
		TenantID:    nr.TenantID,
		Name:        nr.Name,
		Description: nr.Description,
		IsActive:    *nr.IsActive,
		Priority:    nr.Priority,
		Conditions:  nr.Conditions,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return r, errors.Wrap(err, "creating rule")
}

// ExportYAML writes every rule of the tenant, by priority, to w.
func (svc *Service) ExportYAML(ctx context.Context, tenantID string, w io.Writer) error {
	rules, err := svc.repo.QueryRules(ctx, tenantID, QueryFilter{}, nil)
	if err != nil {
		return errors.Wrap(err, "querying rules")
	}
	SortRules(rules)

	doc := Document{Rules: make([]RuleDoc, 0, len(rules))}
	for _, r := range rules {
		active := r.IsActive
		doc.Rules = append(doc.Rules, RuleDoc{
			Name:        r.Name,
			Description: r.Description,
			Active:      &active,
			Priority:    r.Priority,
			Conditions:  r.Conditions,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encoding rules")
	}
	return errors.Wrap(enc.Close(), "encoding rules")
}
