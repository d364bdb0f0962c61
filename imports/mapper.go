package imports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"bitbucket.org/mmdatafocus/clients_backend/config"
)

// ColumnMapping maps each canonical field to the source column index that
// feeds it. A field absent from the map is not imported. Inference
// guarantees each field claims at most one column and each column at most
// one field; operator overrides are checked the same way at commit time.
type ColumnMapping map[Field]int

// NormalizeHeader reduces a raw header to a matching token: lowercased with
// every non-alphanumeric rune stripped ("Cell Phone" -> "cellphone").
func NormalizeHeader(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(header)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Fingerprint identifies a header layout. Two uploads share a fingerprint
// exactly when their normalized header tokens match column for column.
func Fingerprint(headers []string) string {
	h := sha256.New()
	for i, header := range headers {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(NormalizeHeader(header)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// InferMapping maps raw source headers onto canonical fields. For each
// header, field patterns are evaluated in catalog priority order and the
// first matching, not-yet-claimed field wins; a field claimed by an earlier
// column is never reassigned. Zero recognizable columns yield an empty
// mapping, which fails at the validation stage (identity fields required).
func InferMapping(headers []string) ColumnMapping {
	mapping := ColumnMapping{}
	for col, header := range headers {
		token := NormalizeHeader(header)
		if token == "" {
			continue
		}
		for _, spec := range fieldCatalog {
			if _, claimed := mapping[spec.field]; claimed {
				continue
			}
			if spec.matches(token) {
				mapping[spec.field] = col
				break
			}
		}
	}
	return mapping
}

// Validate rejects operator-edited mappings that point two fields at the
// same column or at a column the file does not have.
func (m ColumnMapping) Validate(columnCount int) []RowIssue {
	var issues []RowIssue
	seen := map[int]Field{}
	for field, col := range m {
		if col < 0 || col >= columnCount {
			issues = append(issues, RowIssue{Row: batchRow, Severity: SeverityError,
				Message: "field " + string(field) + " is mapped to a column the file does not have"})
			continue
		}
		if other, dup := seen[col]; dup {
			issues = append(issues, RowIssue{Row: batchRow, Severity: SeverityError,
				Message: "fields " + string(other) + " and " + string(field) + " are mapped to the same column"})
			continue
		}
		seen[col] = field
	}
	return issues
}

const mappingCacheLifespan = 90 * 24 * time.Hour

// MappingCache remembers the last committed mapping per header fingerprint.
// It is a convenience only: losing it just means inference runs fresh.
type MappingCache interface {
	Get(ctx context.Context, businessId string, fingerprint string) (ColumnMapping, bool, error)
	Save(ctx context.Context, businessId string, fingerprint string, mapping ColumnMapping) error
}

// RedisMappingCache stores mappings in redis keyed by business and header
// fingerprint. A stored mapping is only reused on an exact fingerprint match.
type RedisMappingCache struct{}

func mappingCacheKey(businessId, fingerprint string) string {
	return "ImportMapping:" + businessId + ":" + fingerprint
}

func (RedisMappingCache) Get(ctx context.Context, businessId string, fingerprint string) (ColumnMapping, bool, error) {
	var mapping ColumnMapping
	exists, err := config.GetRedisObject(mappingCacheKey(businessId, fingerprint), &mapping)
	if err != nil || !exists {
		return nil, false, err
	}
	return mapping, true, nil
}

func (RedisMappingCache) Save(ctx context.Context, businessId string, fingerprint string, mapping ColumnMapping) error {
	return config.SetRedisObject(mappingCacheKey(businessId, fingerprint), mapping, mappingCacheLifespan)
}
