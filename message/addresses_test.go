package message

import (
	"testing"
)

func TestSplitAddresses(t *testing.T) {
	check := func(s string, exp []string) {
		t.Helper()
		tcompare(t, SplitAddresses(s), exp)
	}

	check("", nil)
	check("a@b", []string{"a@b"})
	check("a@b, c@d", []string{"a@b", "c@d"})
	check("a@b,,c@d,", []string{"a@b", "c@d"})
	check(`"Last, First" <a@b>, c@d`, []string{`"Last, First" <a@b>`, "c@d"})
	check("odd <a,b@c>, d@e", []string{"odd <a,b@c>", "d@e"})
}

func TestSplitNewsgroups(t *testing.T) {
	check := func(s string, exp []string) {
		t.Helper()
		tcompare(t, SplitNewsgroups(s), exp)
	}

	check("", nil)
	check("comp.lang.misc", []string{"comp.lang.misc"})
	check("comp.lang.misc, alt.test", []string{"comp.lang.misc", "alt.test"})
	check(" comp.lang.misc ,\talt.test ,comp.lang.misc", []string{"comp.lang.misc", "alt.test"})
	check(",,", nil)
}

func TestQuoteIfRequired(t *testing.T) {
	check := func(s, exp string) {
		t.Helper()
		tcompare(t, QuoteIfRequired(s), exp)
	}

	check("Alice", "Alice")
	check("Doe, John", `"Doe, John"`)
	check("J. Doe", `"J. Doe"`)
	check(`"Doe, John"`, `"Doe, John"`)
	check("a[b]", `"a[b]"`)
}

func TestExtractAddress(t *testing.T) {
	check := func(s, exp string) {
		t.Helper()
		tcompare(t, ExtractAddress(s), exp)
	}

	check("a@b", "a@b")
	check("Alice <alice@example.org>", "alice@example.org")
	check(`"Doe, John" <jd@example.org>`, "jd@example.org")
	check(" not an address ", "not an address")
}
