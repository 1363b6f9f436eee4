package security

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field length caps applied to untrusted request input.
const (
	MaxLicenseKeyLength = 128
	MaxDiscordIDLength  = 32
	MaxHWIDLength       = 256
)

// ThreatType names a class of suspicious input.
type ThreatType string

const (
	ThreatSuspiciousPattern ThreatType = "suspicious_pattern"
	ThreatMalformedInput    ThreatType = "malformed_input"
	ThreatTruncated         ThreatType = "truncated"
)

// InputValidator normalizes untrusted strings before they reach the store.
// Suspicious input is logged and cleaned, never rejected, so the validation
// pipeline still records a failure for it.
type InputValidator struct {
	logger   *slog.Logger
	patterns []*regexp.Regexp
}

// NewInputValidator compiles the detection patterns.
func NewInputValidator(logger *slog.Logger) *InputValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &InputValidator{
		logger: logger.With(slog.String("component", "input_validator")),
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)union\s+(all\s+)?select`),
			regexp.MustCompile(`(?i)<script[^>]*>`),
			regexp.MustCompile(`(?i)(javascript:|eval\s*\()`),
			regexp.MustCompile(`\.\.[/\\]`),
			regexp.MustCompile(`(?i)('\s*;\s*(drop|delete|insert|update))`),
		},
	}
}

// Clean trims value, strips control characters and caps it at maxLen runes.
func (v *InputValidator) Clean(ctx context.Context, field, value string, maxLen int) string {
	var threats []ThreatType
	if !utf8.ValidString(value) {
		threats = append(threats, ThreatMalformedInput)
		value = strings.ToValidUTF8(value, "")
	}
	cleaned := strings.TrimSpace(removeControlCharacters(value))
	if maxLen > 0 && utf8.RuneCountInString(cleaned) > maxLen {
		threats = append(threats, ThreatTruncated)
		cleaned = string([]rune(cleaned)[:maxLen])
	}
	for _, p := range v.patterns {
		if p.MatchString(cleaned) {
			threats = append(threats, ThreatSuspiciousPattern)
			break
		}
	}
	if len(threats) > 0 {
		v.logSuspiciousInput(ctx, field, value, threats)
	}
	return cleaned
}

// removeControlCharacters drops null bytes and other non-printable runes.
func removeControlCharacters(input string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == ' ' {
			return r
		}
		return -1
	}, input)
}

func (v *InputValidator) logSuspiciousInput(ctx context.Context, field, original string, threats []ThreatType) {
	if len(original) > 100 {
		original = original[:100] + "..."
	}
	v.logger.WarnContext(ctx, "suspicious input detected",
		slog.String("field", field),
		slog.String("input", original),
		slog.Any("threat_types", threats),
	)
}
