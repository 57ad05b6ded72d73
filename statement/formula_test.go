package statement_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/statement-engine/statement"
)

func mustParse(t *testing.T, src string) *statement.Formula {
	t.Helper()
	f, err := statement.ParseFormula(src)
	if err != nil {
		t.Fatalf("ParseFormula(%q): %v", src, err)
	}
	return f
}

func TestFormula_Evaluate(t *testing.T) {
	vars := map[string]decimal.Decimal{
		"A":   decimal.NewFromInt(10),
		"B":   decimal.NewFromInt(4),
		"B01": decimal.NewFromInt(6),
	}

	cases := []struct {
		formula string
		want    int64
	}{
		{"A - B", 6},
		{"A + B * 2", 18},         // precedence: * binds tighter
		{"(A + B) * 2", 28},       // parens override
		{"-B + A", 6},             // unary minus
		{"A + B01", 16},           // alphanumeric line codes
		{"a - b", 6},              // codes are case-insensitive
		{"100 / B", 25},           // literal over reference
		{"A - B - B01", 0},        // left associative
	}

	for _, tc := range cases {
		got, err := mustParse(t, tc.formula).Evaluate(vars)
		if err != nil {
			t.Errorf("%q: %v", tc.formula, err)
			continue
		}
		if !got.Equal(decimal.NewFromInt(tc.want)) {
			t.Errorf("%q: expected %d, got %v", tc.formula, tc.want, got)
		}
	}
}

func TestFormula_RejectsUnexpectedCharacters(t *testing.T) {
	// Formulas come from template authors; anything outside the closed
	// grammar must fail at parse time, not evaluation time.
	for _, src := range []string{
		"A; drop",
		"A $ B",
		"A + ",
		"(A + B",
		"A ** B",
	} {
		if _, err := statement.ParseFormula(src); err == nil {
			t.Errorf("expected parse error for %q", src)
		} else {
			var fe *statement.FormulaError
			if !errors.As(err, &fe) {
				t.Errorf("%q: expected *FormulaError, got %T", src, err)
			}
		}
	}
}

func TestFormula_UnresolvedReference(t *testing.T) {
	// GIVEN: A formula referencing a line absent from the variables
	// WHEN: Evaluating
	// THEN: An error, never a silent zero

	_, err := mustParse(t, "A - MISSING").Evaluate(map[string]decimal.Decimal{
		"A": decimal.NewFromInt(1),
	})
	if err == nil {
		t.Fatal("expected unresolved-reference error")
	}
}

func TestFormula_DivisionByZero(t *testing.T) {
	_, err := mustParse(t, "A / B").Evaluate(map[string]decimal.Decimal{
		"A": decimal.NewFromInt(1),
		"B": decimal.Zero,
	})
	if err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

func TestFormula_References(t *testing.T) {
	// GIVEN: A formula reading three lines, one twice
	// WHEN: Collecting references
	// THEN: Distinct codes, sorted, uppercased

	refs := mustParse(t, "b01 + (A - B01) * c").References()

	if !reflect.DeepEqual(refs, []string{"A", "B01", "C"}) {
		t.Errorf("expected [A B01 C], got %v", refs)
	}
}
