package infra

import (
	"fmt"
	"io"
	"strings"

	"eso_go/internal/domain"

	"github.com/gocarina/gocsv"
)

// ReportRow is one line of a valuation report.
type ReportRow struct {
	GrantID      string `csv:"grant_id"`
	Holder       string `csv:"holder"`
	Policy       string `csv:"policy"`
	Value        string `csv:"value"`
	ExpectedLife string `csv:"expected_life"`
	Method       string `csv:"method"`
	Error        string `csv:"error"`
}

// ReadGrants decodes a headed CSV of grants. Columns are matched by name;
// missing optional columns keep their zero value.
func ReadGrants(r io.Reader) ([]domain.OptionGrant, error) {
	var grants []domain.OptionGrant
	if err := gocsv.Unmarshal(r, &grants); err != nil {
		return nil, fmt.Errorf("failed to decode grants csv: %w", err)
	}

	for i := range grants {
		grants[i].ID = strings.TrimSpace(grants[i].ID)
		if grants[i].ID == "" {
			// Header is line 1
			return nil, fmt.Errorf("grants csv line %d: missing grant_id", i+2)
		}
	}
	return grants, nil
}

// WriteReport encodes valuations as CSV, rounding numbers to precision places.
func WriteReport(w io.Writer, results []domain.GrantValuation, precision int32) error {
	rows := make([]ReportRow, 0, len(results))
	for _, res := range results {
		row := ReportRow{
			GrantID: res.GrantID,
			Holder:  res.Holder,
			Policy:  string(res.Policy),
		}
		if res.Err != nil {
			row.Error = res.Err.Error()
		} else {
			value, life := res.Valuation.Rounded(precision)
			row.Value = value.StringFixed(precision)
			row.ExpectedLife = life.StringFixed(precision)
			row.Method = string(res.Method)
		}
		rows = append(rows, row)
	}

	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
