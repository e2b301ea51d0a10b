package cards

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/creditmate/bankcrawler/internal/logging"
)

const (
	maxNameLen    = 255
	maxTextLen    = 1000
	maxAnnualFee  = 100000
	maxAPRPercent = 100
)

// Validator checks and sanitizes LLM-produced records before persistence.
type Validator struct{}

// Validate normalizes the data and checks every record. It returns false with
// the full error list when anything is off; nothing is mutated.
func (Validator) Validate(data any) (bool, []string) {
	records, err := Normalize(data)
	if err != nil {
		return false, []string{err.Error()}
	}
	if len(records) == 0 {
		return false, []string{"No credit card data found"}
	}

	var errs []string
	for i, rec := range records {
		errs = append(errs, validateRecord(rec, i)...)
	}
	return len(errs) == 0, errs
}

func validateRecord(rec Record, index int) []string {
	prefix := fmt.Sprintf("Card %d: ", index+1)
	var errs []string

	name := strings.TrimSpace(stringField(rec, "name"))
	if name == "" {
		errs = append(errs, prefix+"Credit card name is required")
	} else if len(name) > maxNameLen {
		errs = append(errs, prefix+fmt.Sprintf("Credit card name too long (max %d characters)", maxNameLen))
	}

	for _, field := range []string{"cash_advance_fee", "late_payment_fee", "reward_points_policy"} {
		if v, ok := rec[field].(string); ok && len(v) > maxTextLen {
			errs = append(errs, prefix+fmt.Sprintf("%s is too long (max %d characters)", field, maxTextLen))
		}
	}

	if fee, ok := rec["annual_fee"]; ok && fee != nil {
		errs = append(errs, validateAnnualFee(fee, prefix)...)
	}
	if rate, ok := rec["interest_rate_apr"]; ok && rate != nil {
		errs = append(errs, validateInterestRate(rate, prefix)...)
	}

	for _, field := range []string{"lounge_access_international", "lounge_access_domestic", "lounge_access_condition"} {
		v, ok := rec[field]
		if !ok || v == nil {
			continue
		}
		s, isString := v.(string)
		if !isString {
			errs = append(errs, prefix+fmt.Sprintf("Invalid %s format: %v", field, v))
		} else if len(s) > maxNameLen {
			errs = append(errs, prefix+fmt.Sprintf("%s is too long (max %d characters)", field, maxNameLen))
		}
	}

	if features, ok := rec["additional_features"]; ok && features != nil {
		if _, isList := features.([]any); !isList {
			if _, isStrList := features.([]string); !isStrList {
				logging.Warnf("%sadditional_features is not a list, will be coerced during sanitization", prefix)
			}
		}
	}

	if waiver, ok := rec["annual_fee_waiver_policy"]; ok && waiver != nil {
		switch waiver.(type) {
		case map[string]any, string:
		default:
			errs = append(errs, prefix+"annual_fee_waiver_policy should be an object, string, or null")
		}
	}

	return errs
}

func validateAnnualFee(value any, prefix string) []string {
	fee, err := parseNumber(value)
	if err != nil {
		return []string{prefix + fmt.Sprintf("Invalid annual fee format: %v", value)}
	}
	if fee < 0 {
		return []string{prefix + "Annual fee cannot be negative"}
	}
	if fee > maxAnnualFee {
		return []string{prefix + fmt.Sprintf("Annual fee seems unusually high: %v", fee)}
	}
	return nil
}

func validateInterestRate(value any, prefix string) []string {
	rate, err := parseNumber(value)
	if err != nil {
		return []string{prefix + fmt.Sprintf("Invalid interest rate format: %v", value)}
	}
	if rate < 0 {
		return []string{prefix + "Interest rate cannot be negative"}
	}
	if rate > maxAPRPercent {
		return []string{prefix + fmt.Sprintf("Interest rate seems unusually high: %v%%", rate)}
	}
	return nil
}

// Sanitize trims strings, converts fee/rate fields to plain floats and coerces
// the JSON-ish fields into their canonical shapes. Unparsable numbers become 0.
func (Validator) Sanitize(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		out = append(out, sanitizeRecord(rec))
	}
	return out
}

func sanitizeRecord(rec Record) Record {
	sanitized := Record{}

	for _, field := range []string{
		"name",
		"cash_advance_fee",
		"late_payment_fee",
		"reward_points_policy",
		"lounge_access_international",
		"lounge_access_domestic",
		"lounge_access_condition",
	} {
		sanitized[field] = clipString(stringField(rec, field), maxTextLen)
	}

	sanitized["annual_fee"] = ParseDecimal(rec["annual_fee"])
	sanitized["interest_rate_apr"] = ParseDecimal(rec["interest_rate_apr"])

	switch waiver := rec["annual_fee_waiver_policy"].(type) {
	case map[string]any:
		sanitized["annual_fee_waiver_policy"] = waiver
	case string:
		if trimmed := strings.TrimSpace(waiver); trimmed != "" {
			sanitized["annual_fee_waiver_policy"] = map[string]any{"description": trimmed}
		} else {
			sanitized["annual_fee_waiver_policy"] = nil
		}
	default:
		sanitized["annual_fee_waiver_policy"] = nil
	}

	sanitized["additional_features"] = coerceFeatures(rec["additional_features"])

	return sanitized
}

func coerceFeatures(value any) []string {
	var out []string
	switch features := value.(type) {
	case []string:
		for _, f := range features {
			if trimmed := strings.TrimSpace(f); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	case []any:
		for _, f := range features {
			if f == nil {
				continue
			}
			if trimmed := strings.TrimSpace(fmt.Sprint(f)); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// parseNumber accepts the numeric shapes the model emits, including strings
// carrying currency or percent markers. Unlike ParseDecimal it reports
// unparsable input instead of swallowing it, so validation can surface it.
func parseNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		cleaned := strings.NewReplacer("$", "", "%", "", ",", "", "TK.", "", "US$", "", "৳", "").Replace(v)
		return strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", value)
	}
}

// ParseDecimal converts fee/rate values in any shape the model emits into a
// non-negative float. Currency markers, percent signs and thousands separators
// are stripped; anything unparsable becomes 0.
func ParseDecimal(value any) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return max(0, v)
	case float32:
		return max(0, float64(v))
	case int:
		return max(0, float64(v))
	case int64:
		return max(0, float64(v))
	case string:
		cleaned := strings.NewReplacer("$", "", "%", "", ",", "", "TK.", "", "US$", "", "৳", "").Replace(v)
		cleaned = strings.TrimSpace(cleaned)
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return max(0, parsed)
	default:
		return 0
	}
}

func stringField(rec Record, field string) string {
	v, ok := rec[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func clipString(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
