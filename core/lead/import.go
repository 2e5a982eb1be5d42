package lead

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

// ImportColumns are the spreadsheet columns read and written for leads, in order.
var ImportColumns = []string{
	"store_name", "contact_name", "email", "phone", "address", "city", "postal_code",
	"category", "source", "territory_code", "estimated_value", "notes",
}

// ImportRow is a lead read from a spreadsheet; Line is its row number in the file.
type ImportRow struct {
	Line           int
	StoreName      string
	ContactName    string
	Email          string
	Phone          string
	Address        string
	City           string
	PostalCode     string
	Category       string
	Source         string
	TerritoryCode  string
	EstimatedValue string
	Notes          string
}

type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Created int          `json:"created"`
	Skipped []SkippedRow `json:"skipped"`
}

var ErrTooManyRows = errors.New("too many rows")

// Import creates a lead per valid row. Invalid rows, and rows repeating an e-mail or phone
// already stored or seen earlier in the file, are skipped with the reason.
func (svc *Service) Import(ctx context.Context, tenantID string, rows []ImportRow, validate *validator.Validate, translator ut.Translator, actor user.User) (ImportResult, error) {
	result := ImportResult{Skipped: []SkippedRow{}}
	if svc.maxRows > 0 && len(rows) > svc.maxRows {
		return result, core.NewFieldError("file", errors.Wrapf(ErrTooManyRows, "at most %d rows can be imported", svc.maxRows))
	}

	codes, err := svc.territories.CodeMap(ctx, tenantID)
	if err != nil {
		return result, err
	}

	var (
		now        = time.Now().UTC()
		seenEmails = make(map[string]int)
		seenPhones = make(map[string]int)
		skip       = func(line int, reason string) { result.Skipped = append(result.Skipped, SkippedRow{line, reason}) }
	)
	for _, row := range rows {
		nl, err := row.toNewLead(tenantID, codes)
		if err != nil {
			skip(row.Line, err.Error())
			continue
		}
		nl.clean()
		if err := validate.Struct(nl); err != nil {
			skip(row.Line, describeValidation(err, translator))
			continue
		}
		if line, ok := seenEmails[nl.Email]; ok && nl.Email != "" {
			skip(row.Line, fmt.Sprintf("email: duplicate of line %d", line))
			continue
		}
		if line, ok := seenPhones[nl.Phone]; ok && nl.Phone != "" {
			skip(row.Line, fmt.Sprintf("phone: duplicate of line %d", line))
			continue
		}
		if err := svc.checkUniqueness(tenantID, nl.Email, nl.Phone, ""); err != nil {
			if !core.IsValidationError(err) {
				return result, err
			}
			skip(row.Line, describeValidation(err, translator))
			continue
		}

		if _, err := svc.create(ctx, *nl, actor, now); err != nil {
			return result, err
		}
		result.Created++
		if nl.Email != "" {
			seenEmails[nl.Email] = row.Line
		}
		if nl.Phone != "" {
			seenPhones[nl.Phone] = row.Line
		}
	}

	if result.Created > 0 {
		if err := svc.touch(ctx, tenantID); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (row ImportRow) toNewLead(tenantID string, codes map[string]string) (*NewLead, error) {
	nl := &NewLead{
		TenantID:    tenantID,
		StoreName:   row.StoreName,
		ContactName: row.ContactName,
		Email:       row.Email,
		Phone:       row.Phone,
		Address:     row.Address,
		City:        row.City,
		PostalCode:  row.PostalCode,
		Category:    row.Category,
		Source:      row.Source,
		Notes:       row.Notes,
	}
	if nl.Source = core.CleanString(nl.Source, true /* lower */); nl.Source == "" {
		nl.Source = SourceImport
	}
	if code := strings.ToUpper(core.CleanString(row.TerritoryCode)); code != "" {
		id, ok := codes[code]
		if !ok {
			return nil, errors.Errorf("territory_code: unknown territory %q", code)
		}
		nl.TerritoryID = id
	}
	if v := core.CleanString(row.EstimatedValue); v != "" {
		value, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
		if err != nil {
			return nil, errors.Errorf("estimated_value: %q is not a number", v)
		}
		nl.EstimatedValue = value
	}
	return nl, nil
}

// describeValidation flattens a validation error into "field: message; ..." text.
func describeValidation(err error, translator ut.Translator) string {
	var parts []string
	switch verr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fe := range verr {
			parts = append(parts, fe.Field()+": "+fe.Translate(translator))
		}
	case *core.ValidationError:
		for _, fe := range verr.Fields {
			parts = append(parts, fe.Field+": "+fe.Error)
		}
		if len(parts) == 0 {
			return verr.Error()
		}
	default:
		return err.Error()
	}
	return strings.Join(parts, "; ")
}
