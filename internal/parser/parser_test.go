package parser

import (
	"strings"
	"testing"

	apperrors "finanzas/internal/errors"
	"finanzas/internal/models"
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %q, got nil", code)
	}
	if got := apperrors.Code(err); got != code {
		t.Fatalf("expected error code %q, got %q (%v)", code, got, err)
	}
}

func TestParseNaturalForm(t *testing.T) {
	t.Run("full_message", func(t *testing.T) {
		intent, err := Parse("gasto 12.50 Cafe en Cuenta Principal")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.Type != models.TransactionTypeExpense {
			t.Errorf("expected expense, got %s", intent.Type)
		}
		if intent.AmountCents != 1250 {
			t.Errorf("expected 1250 cents, got %d", intent.AmountCents)
		}
		if intent.Category != "Cafe" {
			t.Errorf("expected category Cafe, got %q", intent.Category)
		}
		if intent.Account != "Cuenta Principal" {
			t.Errorf("expected account 'Cuenta Principal', got %q", intent.Account)
		}
		if intent.Description != DefaultDescription {
			t.Errorf("expected default description, got %q", intent.Description)
		}
	})

	t.Run("income_without_account", func(t *testing.T) {
		intent, err := Parse("ingreso 1500 Salario")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.Type != models.TransactionTypeIncome {
			t.Errorf("expected income, got %s", intent.Type)
		}
		if intent.AmountCents != 150000 {
			t.Errorf("expected 150000 cents, got %d", intent.AmountCents)
		}
		if intent.Account != "" {
			t.Errorf("expected empty account, got %q", intent.Account)
		}
	})

	t.Run("case_insensitive_keyword", func(t *testing.T) {
		intent, err := Parse("GASTO 20 Transporte")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.Type != models.TransactionTypeExpense {
			t.Errorf("expected expense, got %s", intent.Type)
		}
	})

	t.Run("single_decimal_digit", func(t *testing.T) {
		intent, err := Parse("gasto 12.5 Cafe")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.AmountCents != 1250 {
			t.Errorf("expected 1250 cents, got %d", intent.AmountCents)
		}
	})

	t.Run("leading_trailing_whitespace", func(t *testing.T) {
		intent, err := Parse("   gasto 10 Cafe   ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.AmountCents != 1000 {
			t.Errorf("expected 1000 cents, got %d", intent.AmountCents)
		}
	})

	t.Run("description_after_category", func(t *testing.T) {
		// The category is the single word after the amount; any further words
		// outside an immediate "en" clause belong to the description.
		intent, err := Parse("gasto 30 Comida Rapida en Efectivo")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.Category != "Comida" {
			t.Errorf("expected category Comida, got %q", intent.Category)
		}
		if intent.Account != "" {
			t.Errorf("expected empty account, got %q", intent.Account)
		}
		if intent.Description != "Rapida en Efectivo" {
			t.Errorf("expected description 'Rapida en Efectivo', got %q", intent.Description)
		}
	})
}

func TestParseTokenizedForm(t *testing.T) {
	t.Run("quoted_account", func(t *testing.T) {
		intent, err := Parse(`GASTO 25.50 Comida "Cuenta Principal"`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.Type != models.TransactionTypeExpense {
			t.Errorf("expected expense, got %s", intent.Type)
		}
		if intent.AmountCents != 2550 {
			t.Errorf("expected 2550 cents, got %d", intent.AmountCents)
		}
		if intent.Category != "Comida" {
			t.Errorf("expected category Comida, got %q", intent.Category)
		}
		if intent.Account != "Cuenta Principal" {
			t.Errorf("expected account 'Cuenta Principal', got %q", intent.Account)
		}
	})

	t.Run("comma_decimal_separator", func(t *testing.T) {
		intent, err := Parse(`INGRESO 100,25 Ventas "Caja Chica"`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.AmountCents != 10025 {
			t.Errorf("expected 10025 cents, got %d", intent.AmountCents)
		}
	})

	t.Run("trailing_description", func(t *testing.T) {
		intent, err := Parse(`GASTO 15 Cafe "Caja Chica" cafe con amigos`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.Account != "Caja Chica" {
			t.Errorf("expected account 'Caja Chica', got %q", intent.Account)
		}
		if intent.Description != "cafe con amigos" {
			t.Errorf("expected description 'cafe con amigos', got %q", intent.Description)
		}
	})

	t.Run("unquoted_extra_words_stay_natural", func(t *testing.T) {
		// Without quotes the natural form wins and the fourth word lands in
		// the description, not the account.
		intent, err := Parse("gasto 15 Cafe Efectivo algo mas")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.Account != "" {
			t.Errorf("expected empty account, got %q", intent.Account)
		}
	})

	t.Run("unknown_keyword", func(t *testing.T) {
		_, err := Parse(`COMPRA 25 Comida Efectivo`)
		assertCode(t, err, "MOVEMENT_TYPE_INVALID")
	})

	t.Run("keyword_with_too_few_tokens", func(t *testing.T) {
		_, err := Parse(`GASTO "25.50"`)
		assertCode(t, err, "MESSAGE_FORMAT_INVALID")
		if err.Error() != apperrors.ErrTokenFormat.Message {
			t.Errorf("expected tokenized usage hint, got %q", err.Error())
		}
	})
}

func TestParseRejections(t *testing.T) {
	t.Run("free_text", func(t *testing.T) {
		_, err := Parse("hola como estas")
		assertCode(t, err, "MESSAGE_FORMAT_INVALID")
		if err.Error() != apperrors.ErrMessageFormat.Message {
			t.Errorf("expected natural-form usage hint, got %q", err.Error())
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Parse("")
		assertCode(t, err, "MESSAGE_FORMAT_INVALID")
	})

	t.Run("zero_amount", func(t *testing.T) {
		_, err := Parse("gasto 0 Cafe")
		assertCode(t, err, "AMOUNT_NOT_POSITIVE")
	})

	t.Run("zero_amount_with_decimals", func(t *testing.T) {
		_, err := Parse("gasto 0.00 Cafe")
		assertCode(t, err, "AMOUNT_NOT_POSITIVE")
	})

	t.Run("non_numeric_amount", func(t *testing.T) {
		_, err := Parse(`GASTO abc Comida Efectivo`)
		assertCode(t, err, "AMOUNT_INVALID")
	})

	t.Run("three_decimal_digits", func(t *testing.T) {
		// Falls through to the tokenized form, which rejects the fraction.
		_, err := Parse(`GASTO 12.505 Comida Efectivo`)
		assertCode(t, err, "AMOUNT_INVALID")
	})
}

func TestParseAmountCents(t *testing.T) {
	cases := []struct {
		raw   string
		cents int64
	}{
		{"1", 100},
		{"0.01", 1},
		{"12.50", 1250},
		{"12.5", 1250},
		{"12,50", 1250},
		{"999999", 99999900},
	}
	for _, tc := range cases {
		cents, err := parseAmountCents(tc.raw)
		if err != nil {
			t.Errorf("parseAmountCents(%q): unexpected error %v", tc.raw, err)
			continue
		}
		if cents != tc.cents {
			t.Errorf("parseAmountCents(%q) = %d, want %d", tc.raw, cents, tc.cents)
		}
	}

	t.Run("minimum_positive", func(t *testing.T) {
		cents, err := parseAmountCents("0.01")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cents != 1 {
			t.Errorf("expected 1 cent, got %d", cents)
		}
	})

	t.Run("negative_rejected_by_pattern", func(t *testing.T) {
		_, err := parseAmountCents("-5")
		assertCode(t, err, "AMOUNT_INVALID")
	})

	t.Run("overflow_rejected", func(t *testing.T) {
		// 4e17 units would wrap int64 when converted to cents; the wrapped
		// value is positive, so without the bound the parse would succeed
		// with a garbage amount.
		_, err := parseAmountCents("400000000000000000")
		assertCode(t, err, "AMOUNT_INVALID")

		_, err = parseAmountCents("92233720368547758")
		assertCode(t, err, "AMOUNT_INVALID")

		cents, err := parseAmountCents("92233720368547757.99")
		if err != nil {
			t.Fatalf("unexpected error at the cents ceiling: %v", err)
		}
		if cents != 9223372036854775799 {
			t.Errorf("expected 9223372036854775799 cents, got %d", cents)
		}
	})

	t.Run("beyond_int64_rejected", func(t *testing.T) {
		_, err := parseAmountCents("99999999999999999999")
		assertCode(t, err, "AMOUNT_INVALID")
	})
}

func TestParseHugeAmount(t *testing.T) {
	_, err := Parse("gasto 400000000000000000 Cafe")
	assertCode(t, err, "AMOUNT_INVALID")
}

func TestSplitQuoted(t *testing.T) {
	tokens := splitQuoted(`GASTO 25.50 Comida "Cuenta Principal" nota larga`)
	want := []string{"GASTO", "25.50", "Comida", `"Cuenta Principal"`, "nota", "larga"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(tokens), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], tokens[i])
		}
	}

	if got := strings.Join(splitQuoted("  a\t b  "), ","); got != "a,b" {
		t.Errorf("expected 'a,b', got %q", got)
	}
}
