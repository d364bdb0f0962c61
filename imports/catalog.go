package imports

import "regexp"

// Field is a canonical client attribute the import pipeline can target.
type Field string

const (
	FieldFirstName     Field = "firstName"
	FieldLastName      Field = "lastName"
	FieldFullName      Field = "name" // combined column; split during normalization
	FieldPhone         Field = "phone"
	FieldEmail         Field = "email"
	FieldDateOfBirth   Field = "dateOfBirth"
	FieldEffectiveDate Field = "effectiveDate"
	FieldPlanType      Field = "planType"
	FieldPlan          Field = "plan"
	FieldCarrier       Field = "carrier"
	FieldStatus        Field = "status"
	FieldStreet        Field = "street"
	FieldCity          Field = "city"
	FieldState         Field = "state"
	FieldZip           Field = "zip"
	FieldNotes         Field = "notes"
)

type FieldGroup string

const (
	// FieldGroupRequired fields establish the record's name; an upload mapping
	// none of them cannot be committed.
	FieldGroupRequired FieldGroup = "required"
	// FieldGroupCritical fields are identity keys; at least one must be mapped.
	FieldGroupCritical FieldGroup = "critical"
	FieldGroupOptional FieldGroup = "optional"
)

type fieldSpec struct {
	field    Field
	group    FieldGroup
	patterns []*regexp.Regexp
}

func (s fieldSpec) matches(token string) bool {
	for _, p := range s.patterns {
		if p.MatchString(token) {
			return true
		}
	}
	return false
}

func pats(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// fieldCatalog declares every canonical field with its synonym patterns.
// Declaration order IS the matching priority: dedicated first/last name
// columns are claimed before the generic combined name, and planType is
// checked before the broader plan pattern. Patterns run against normalized
// header tokens (lowercased, non-alphanumerics stripped).
var fieldCatalog = []fieldSpec{
	{FieldFirstName, FieldGroupRequired, pats(`first`, `fname`, `given`)},
	{FieldLastName, FieldGroupRequired, pats(`last`, `lname`, `surname`, `family`)},
	{FieldFullName, FieldGroupRequired, pats(`^(fullname|name|client|clientname|customer|customername|insuredname|contactname)$`)},
	{FieldPhone, FieldGroupCritical, pats(`phone`, `mobile`, `cell`, `tel`)},
	{FieldEmail, FieldGroupCritical, pats(`email`, `^mail$`)},
	{FieldDateOfBirth, FieldGroupOptional, pats(`dob`, `birth`)},
	{FieldEffectiveDate, FieldGroupOptional, pats(`eff`, `start`, `issue`)},
	{FieldPlanType, FieldGroupOptional, pats(`type`)},
	{FieldPlan, FieldGroupOptional, pats(`plan`, `policy`, `product`)},
	{FieldCarrier, FieldGroupOptional, pats(`carrier`, `company`, `insurer`, `provider`)},
	{FieldStatus, FieldGroupOptional, pats(`status`, `stage`)},
	{FieldStreet, FieldGroupOptional, pats(`street`, `address`, `addr`)},
	{FieldCity, FieldGroupOptional, pats(`city`, `town`)},
	{FieldState, FieldGroupOptional, pats(`^(state|st|province|region)$`)},
	{FieldZip, FieldGroupOptional, pats(`zip`, `postal`, `postcode`)},
	{FieldNotes, FieldGroupOptional, pats(`note`, `comment`, `remark`)},
}

// Fields lists every canonical field in priority order.
func Fields() []Field {
	out := make([]Field, 0, len(fieldCatalog))
	for _, spec := range fieldCatalog {
		out = append(out, spec.field)
	}
	return out
}

func fieldGroup(f Field) FieldGroup {
	for _, spec := range fieldCatalog {
		if spec.field == f {
			return spec.group
		}
	}
	return FieldGroupOptional
}
