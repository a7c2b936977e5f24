package guard

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "ai-scam-shield-demo/backend/pkg/errors"
)

// ValidationError describes a rejected payload. Code is one of the
// pkg/errors validation codes; Detail names the specific cause and is only
// ever shown outside production.
type ValidationError struct {
	Code   string
	Field  string
	Detail string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %s", e.Code, e.Field, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// signature is a named attack pattern. Matching is substring/regex based,
// not a parser: encoded payloads can slip past it, so sanitization is
// defense-in-depth on top of parameterized queries and output templating
// downstream, never the sole safeguard.
type signature struct {
	name string
	re   *regexp.Regexp
}

var attackSignatures = []signature{
	{"script injection", regexp.MustCompile(`(?i)<\s*/?\s*script\b|javascript\s*:|\bon(?:click|error|load|focus|mouseover)\s*=`)},
	{"sql injection", regexp.MustCompile(`(?i)['";]\s*(?:drop|delete|truncate|insert|update|exec|alter)\b|\bunion\s+(?:all\s+)?select\b|\b(?:drop|truncate)\s+table\b`)},
	{"path traversal", regexp.MustCompile(`\.\./|\.\.\\`)},
	{"command injection", regexp.MustCompile(`[;&|]\s*(?:rm|curl|wget|nc|bash|sh)\b|\$\(`)},
	{"prototype pollution", regexp.MustCompile(`__proto__|\bconstructor\s*\[|\bprototype\s*\[`)},
}

// controlChars matches control characters outside the whitelisted
// whitespace (tab, newline, carriage return).
var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// MatchAttackSignature returns the name of the first matching attack
// signature, or "" when none match.
func MatchAttackSignature(s string) string {
	for _, sig := range attackSignatures {
		if sig.re.MatchString(s) {
			return sig.name
		}
	}
	return ""
}

// SanitizeText validates raw against the size bound and the attack
// signature list, then returns a normalized copy (whitespace-trimmed, CRLF
// folded to LF). It is idempotent on already-clean input.
func SanitizeText(raw string, maxLength int) (string, error) {
	if maxLength > 0 && utf8.RuneCountInString(raw) > maxLength {
		return "", &ValidationError{
			Code:   apperrors.CodePayloadTooLarge,
			Detail: fmt.Sprintf("input exceeds maximum length of %d characters", maxLength),
		}
	}

	if controlChars.MatchString(raw) {
		return "", &ValidationError{
			Code:   apperrors.CodeDisallowedContent,
			Detail: "input contains control characters",
		}
	}

	if name := MatchAttackSignature(raw); name != "" {
		return "", &ValidationError{
			Code:   apperrors.CodeDisallowedContent,
			Detail: "input matches " + name + " pattern",
		}
	}

	clean := strings.ReplaceAll(raw, "\r\n", "\n")
	clean = strings.ReplaceAll(clean, "\r", "\n")
	return strings.TrimSpace(clean), nil
}

// FieldKind is the expected primitive kind of a payload field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindBool
	KindObject
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindObject:
		return "object"
	}
	return "unknown"
}

// ValidationRule is a declarative constraint for one payload field.
type ValidationRule struct {
	Field    string
	Kind     FieldKind
	Required bool
	// MaxLength bounds string fields; 0 means no bound beyond the global one.
	MaxLength int
	// Enum restricts a string field to a closed set of values.
	Enum []string
	// Children validates the fields of a nested object.
	Children []ValidationRule
}

// ValidatePayload checks payload against rules and returns a cleaned copy.
// Structure gates content: missing fields and type mismatches are reported
// before any string is run through the signature matcher.
func ValidatePayload(payload map[string]any, rules []ValidationRule) (map[string]any, error) {
	if err := checkStructure(payload, rules, ""); err != nil {
		return nil, err
	}
	return sanitizeContent(payload, rules)
}

func checkStructure(payload map[string]any, rules []ValidationRule, prefix string) error {
	var missing []string
	for _, rule := range rules {
		// Explicit null counts as absent: a required field must carry a value.
		if value, ok := payload[rule.Field]; rule.Required && (!ok || value == nil) {
			missing = append(missing, prefix+rule.Field)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{
			Code:   apperrors.CodeMissingRequiredField,
			Field:  missing[0],
			Detail: "missing required fields: " + strings.Join(missing, ", "),
		}
	}

	for _, rule := range rules {
		value, ok := payload[rule.Field]
		if !ok || value == nil {
			continue
		}

		name := prefix + rule.Field
		switch rule.Kind {
		case KindString:
			if _, ok := value.(string); !ok {
				return typeMismatch(name, rule.Kind, value)
			}
		case KindNumber:
			if _, ok := value.(float64); !ok {
				return typeMismatch(name, rule.Kind, value)
			}
		case KindBool:
			if _, ok := value.(bool); !ok {
				return typeMismatch(name, rule.Kind, value)
			}
		case KindObject:
			nested, ok := value.(map[string]any)
			if !ok {
				return typeMismatch(name, rule.Kind, value)
			}
			if err := checkStructure(nested, rule.Children, name+"."); err != nil {
				return err
			}
		}
	}
	return nil
}

func sanitizeContent(payload map[string]any, rules []ValidationRule) (map[string]any, error) {
	clean := make(map[string]any, len(payload))
	for key, value := range payload {
		clean[key] = value
	}

	for _, rule := range rules {
		value, ok := payload[rule.Field]
		if !ok || value == nil {
			continue
		}

		switch rule.Kind {
		case KindString:
			s, err := SanitizeText(value.(string), rule.MaxLength)
			if err != nil {
				if verr, ok := err.(*ValidationError); ok && verr.Field == "" {
					verr.Field = rule.Field
				}
				return nil, err
			}
			if len(rule.Enum) > 0 && !containsString(rule.Enum, s) {
				return nil, &ValidationError{
					Code:   apperrors.CodeInvalidEnumValue,
					Field:  rule.Field,
					Detail: "value not in allowed set [" + strings.Join(rule.Enum, ", ") + "]",
				}
			}
			clean[rule.Field] = s
		case KindObject:
			nested, err := sanitizeContent(value.(map[string]any), rule.Children)
			if err != nil {
				return nil, err
			}
			clean[rule.Field] = nested
		}
	}
	return clean, nil
}

func typeMismatch(field string, want FieldKind, got any) error {
	return &ValidationError{
		Code:   apperrors.CodeMalformedStructure,
		Field:  field,
		Detail: fmt.Sprintf("expected %s, got %T", want, got),
	}
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
