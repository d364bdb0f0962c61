package imports

import (
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/clients_backend/models"
	"bitbucket.org/mmdatafocus/clients_backend/utils"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// batchRow marks issues that apply to the whole upload rather than one row.
const batchRow = 0

// RowIssue is an ephemeral validation outcome surfaced to the caller.
// Row is the 1-based spreadsheet row (headers are row 1); 0 means the issue
// is batch-level.
type RowIssue struct {
	Row      int      `json:"row"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func HasBlocking(issues []RowIssue) bool {
	for _, issue := range issues {
		if issue.Row == batchRow && issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Defaults supplies an out-of-band value for any unmapped field (e.g. one
// carrier for the whole file). A default never overrides a per-row value.
type Defaults map[Field]string

// ValidatePipeline runs the whole-batch checks once, before any row is
// processed. Errors here block the import entirely.
func ValidatePipeline(mapping ColumnMapping, defaults Defaults) []RowIssue {
	var issues []RowIssue

	has := func(f Field) bool {
		if _, ok := mapping[f]; ok {
			return true
		}
		return strings.TrimSpace(defaults[f]) != ""
	}

	var hasName, hasIdentity bool
	for _, f := range Fields() {
		switch fieldGroup(f) {
		case FieldGroupRequired:
			hasName = hasName || has(f)
		case FieldGroupCritical:
			hasIdentity = hasIdentity || has(f)
		}
	}
	if !hasName {
		issues = append(issues, RowIssue{Row: batchRow, Severity: SeverityError,
			Message: "no name column mapped: map first name, last name, or a combined name column"})
	}
	if !hasIdentity {
		issues = append(issues, RowIssue{Row: batchRow, Severity: SeverityError,
			Message: "no identity column mapped: map phone or email so rows can be matched to existing clients"})
	}
	if !has(FieldEffectiveDate) {
		issues = append(issues, RowIssue{Row: batchRow, Severity: SeverityWarning,
			Message: "no effective date column mapped: retention features will be degraded"})
	}

	return issues
}

// NormalizedRow pairs a canonical record with its source spreadsheet row.
type NormalizedRow struct {
	Row    int
	Client *models.Client
}

// NormalizeResult is the outcome of normalizing one raw row. Exactly one of
// Client or Skipped describes the row; Issues may accompany either.
type NormalizeResult struct {
	Client  *models.Client
	Skipped bool
	Issues  []RowIssue
}

// dateLayouts is the lenient parser's layout list, most specific first.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1-2-2006",
	"01/02/06",
	"1/2/06",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2006-01-02 15:04:05",
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeRow converts one raw row into a canonical client record. It is a
// pure function of (row, mapping, defaults): no row's outcome depends on any
// other row. Rows with no name at all are skipped, not errored; sparse
// trailing rows are common in spreadsheets.
func NormalizeRow(rowNum int, row []string, mapping ColumnMapping, defaults Defaults) NormalizeResult {
	result := NormalizeResult{}

	cell := func(f Field) string {
		if col, ok := mapping[f]; ok && col >= 0 && col < len(row) {
			if v := strings.TrimSpace(row[col]); v != "" {
				return v
			}
		}
		return strings.TrimSpace(defaults[f])
	}

	firstName := cell(FieldFirstName)
	lastName := cell(FieldLastName)

	// A combined name column only stands in when no dedicated first/last
	// columns exist; split on the first whitespace boundary.
	_, hasFirstCol := mapping[FieldFirstName]
	_, hasLastCol := mapping[FieldLastName]
	if !hasFirstCol && !hasLastCol {
		if full := cell(FieldFullName); full != "" {
			if i := strings.IndexFunc(full, func(r rune) bool { return r == ' ' || r == '\t' }); i > 0 {
				firstName = strings.TrimSpace(full[:i])
				lastName = strings.TrimSpace(full[i+1:])
			} else {
				firstName = full
			}
		}
	}

	client := &models.Client{
		FirstName: firstName,
		LastName:  lastName,
		Phone:     cell(FieldPhone),
		Email:     cell(FieldEmail),
		Carrier:   cell(FieldCarrier),
		Plan:      cell(FieldPlan),
		PlanType:  cell(FieldPlanType),
		Street:    cell(FieldStreet),
		City:      cell(FieldCity),
		State:     cell(FieldState),
		Zip:       cell(FieldZip),
		Notes:     cell(FieldNotes),
	}

	if !client.HasName() {
		result.Skipped = true
		result.Issues = append(result.Issues, RowIssue{Row: rowNum, Severity: SeverityWarning,
			Message: "row skipped: no name"})
		return result
	}

	if raw := cell(FieldEffectiveDate); raw != "" {
		if t, ok := parseDate(raw); ok {
			client.EffectiveDate = &t
		} else {
			result.Issues = append(result.Issues, RowIssue{Row: rowNum, Severity: SeverityWarning,
				Message: "unparseable effective date " + strconv.Quote(raw) + " dropped"})
		}
	}
	if raw := cell(FieldDateOfBirth); raw != "" {
		if t, ok := parseDate(raw); ok {
			client.DateOfBirth = &t
		} else {
			result.Issues = append(result.Issues, RowIssue{Row: rowNum, Severity: SeverityWarning,
				Message: "unparseable date of birth " + strconv.Quote(raw) + " dropped"})
		}
	}

	// Status is only coerced when the source actually carries a status
	// column (or a default); an update must not silently flip an existing
	// client back to active. Creation defaults the empty value to active.
	_, hasStatusCol := mapping[FieldStatus]
	if hasStatusCol || strings.TrimSpace(defaults[FieldStatus]) != "" {
		client.Status = models.ParseClientStatus(cell(FieldStatus))
	}

	if client.Email != "" && !utils.IsValidEmail(client.Email) {
		result.Issues = append(result.Issues, RowIssue{Row: rowNum, Severity: SeverityWarning,
			Message: "email " + strconv.Quote(client.Email) + " does not look valid"})
	}
	if client.Phone != "" {
		if err := utils.ValidatePhoneNumber(client.Phone, utils.CountryCode); err != nil {
			result.Issues = append(result.Issues, RowIssue{Row: rowNum, Severity: SeverityWarning,
				Message: "phone " + strconv.Quote(client.Phone) + " does not look valid"})
		}
	}

	result.Client = client
	return result
}
