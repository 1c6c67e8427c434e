// Package parser turns a raw WhatsApp text into a structured movement intent.
//
// Parsing is pure: no I/O, no database access, and all grammar state lives in
// package-level precompiled patterns. Two surface forms are supported and
// tried in a fixed order:
//
//  1. Natural-language: "gasto|ingreso <monto> <categoría> [en <cuenta>] [descripción]"
//  2. Tokenized: "GASTO|INGRESO <monto> <categoria> <cuenta> [descripción...]",
//     with double quotes grouping multi-word names.
//
// The natural-language form wins whenever it matches, with one carve-out:
// texts containing double quotes go straight to the tokenized form, since
// quotes only exist in that grammar and the natural pattern would swallow a
// quoted account name into the trailing description.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	apperrors "finanzas/internal/errors"
	"finanzas/internal/models"
)

// DefaultDescription is recorded on movements whose message carried no
// explicit description.
const DefaultDescription = "Registrado desde WhatsApp"

var (
	// movementPattern captures: 1 type keyword, 2 amount, 3 category,
	// 4 optional account (after "en"), 5 optional trailing description.
	movementPattern = regexp.MustCompile(
		`(?i)^(gasto|ingreso)\s+(\d+(?:\.\d{1,2})?)\s+([\w\s]+?)(?:\s+en\s+([\w\s]+))?(?:\s+(.+))?$`)

	// amountPattern admits an unsigned decimal with an optional "." or ","
	// separated fraction. Fraction length is checked separately so that 3+
	// fractional digits yield a distinct rejection, not a silent truncation.
	amountPattern = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
)

// Intent is the structured result of parsing one raw message.
type Intent struct {
	Type        models.TransactionType
	AmountCents int64
	Category    string
	Account     string // empty means "use the user's default account"
	Description string
}

// Parse parses rawText into an Intent. All failures are returned as AppErrors
// with user-presentable messages; Parse never panics on malformed input.
func Parse(rawText string) (*Intent, error) {
	text := strings.TrimSpace(rawText)

	if strings.Contains(text, `"`) {
		return parseTokenized(text)
	}

	if m := movementPattern.FindStringSubmatch(text); m != nil {
		return fromNaturalMatch(m)
	}
	return parseTokenized(text)
}

func parseTokenized(text string) (*Intent, error) {
	tokens := splitQuoted(text)
	if len(tokens) >= 4 {
		return fromTokens(tokens)
	}
	if len(tokens) > 0 && isTypeKeyword(tokens[0]) {
		// A recognized keyword with too few tokens is a tokenized-form
		// mistake, answered with that form's usage hint.
		return nil, apperrors.ErrTokenFormat
	}

	return nil, apperrors.ErrMessageFormat
}

func fromNaturalMatch(m []string) (*Intent, error) {
	cents, err := parseAmountCents(m[2])
	if err != nil {
		return nil, err
	}

	intent := &Intent{
		Type:        movementType(m[1]),
		AmountCents: cents,
		Category:    strings.TrimSpace(m[3]),
		Account:     strings.TrimSpace(m[4]),
		Description: strings.TrimSpace(m[5]),
	}
	if intent.Description == "" {
		intent.Description = DefaultDescription
	}
	return intent, nil
}

func fromTokens(tokens []string) (*Intent, error) {
	// Token layout: 0 type, 1 amount, 2 category, 3 account, 4+ description.
	// Both category and account are required in this form.
	if !isTypeKeyword(tokens[0]) {
		return nil, apperrors.ErrMovementTypeInvalid
	}

	cents, err := parseAmountCents(tokens[1])
	if err != nil {
		return nil, err
	}

	intent := &Intent{
		Type:        movementType(tokens[0]),
		AmountCents: cents,
		Category:    unquote(tokens[2]),
		Account:     unquote(tokens[3]),
		Description: unquote(strings.Join(tokens[4:], " ")),
	}
	if intent.Description == "" {
		intent.Description = DefaultDescription
	}
	return intent, nil
}

// parseAmountCents converts a decimal literal to integer cents without going
// through floating point. Amounts with more than two fractional digits are
// rejected; zero and negative amounts are rejected.
func parseAmountCents(raw string) (int64, error) {
	if !amountPattern.MatchString(raw) {
		return 0, apperrors.ErrAmountInvalid
	}

	normalized := strings.ReplaceAll(raw, ",", ".")
	whole, frac, _ := strings.Cut(normalized, ".")
	if len(frac) > 2 {
		return 0, apperrors.ErrAmountInvalid
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, apperrors.ErrAmountInvalid
	}
	// Conversion to cents must not wrap around int64.
	if units > (math.MaxInt64-99)/100 {
		return 0, apperrors.ErrAmountInvalid
	}

	cents := units * 100
	if frac != "" {
		fracVal, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, apperrors.ErrAmountInvalid
		}
		if len(frac) == 1 {
			fracVal *= 10
		}
		cents += fracVal
	}

	if cents <= 0 {
		return 0, apperrors.ErrAmountNotPositive
	}
	return cents, nil
}

func isTypeKeyword(token string) bool {
	switch strings.ToUpper(unquote(token)) {
	case "GASTO", "INGRESO":
		return true
	}
	return false
}

func movementType(keyword string) models.TransactionType {
	if strings.EqualFold(unquote(keyword), "gasto") {
		return models.TransactionTypeExpense
	}
	return models.TransactionTypeIncome
}

func unquote(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}

// splitQuoted splits on whitespace while keeping double-quoted runs together,
// so `GASTO 25.50 Comida "Cuenta Principal"` yields four tokens.
func splitQuoted(text string) []string {
	var tokens []string
	var token strings.Builder
	inQuotes := false

	for _, r := range text {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			token.WriteRune(r)
		case (r == ' ' || r == '\t') && !inQuotes:
			if token.Len() > 0 {
				tokens = append(tokens, token.String())
				token.Reset()
			}
		default:
			token.WriteRune(r)
		}
	}
	if token.Len() > 0 {
		tokens = append(tokens, token.String())
	}
	return tokens
}
