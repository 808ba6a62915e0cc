package message

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func tcheck(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", msg, err)
	}
}

func tcompare(t *testing.T, got, expect any) {
	t.Helper()
	if !reflect.DeepEqual(got, expect) {
		t.Fatalf("got:\n%v\nexpected:\n%v", got, expect)
	}
}

func TestParseMsgIDs(t *testing.T) {
	check := func(refs string, exp []string) {
		t.Helper()
		tcompare(t, ParseMsgIDs(refs), exp)
	}

	check("", nil)
	check("<a@b>", []string{"a@b"})
	check("<a@b> <c@d>", []string{"a@b", "c@d"})
	check("<a@b>\r\n\t<c@d>", []string{"a@b", "c@d"})
	check("comment <a@b> more <c@d>", []string{"a@b", "c@d"})
	check("<a @ b>", []string{"a@b"})
	check("<truncated <a@b>", []string{"a@b"})
	check("<>", nil)
	check("no brackets", nil)
}

func TestBuildReferences(t *testing.T) {
	// No prior chain means no References, even with a message-id at hand.
	tcompare(t, BuildReferences("", "new@x"), "")
	tcompare(t, BuildReferences("junk without ids", "new@x"), "")

	tcompare(t, BuildReferences("<a@b>", "new@x"), "<a@b>\n\t<new@x>")
	tcompare(t, BuildReferences("<a@b> <c@d>", ""), "<a@b>\n\t<c@d>")

	// Over the ceiling, the second id goes first. With ids this size, eleven
	// of them exceed the ceiling and dropping one suffices.
	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, fmt.Sprintf("%090d@x.y", i))
	}
	chain := "<" + strings.Join(ids, "> <") + ">"
	got := BuildReferences(chain, "new@x")
	exp := "<" + ids[0] + ">"
	for _, id := range append(ids[2:], "new@x") {
		exp += "\n\t<" + id + ">"
	}
	tcompare(t, got, exp)

	// When fewer than three ids would remain there is no References at all.
	big := strings.Repeat("x", 600) + "@y"
	tcompare(t, BuildReferences("<"+big+">", big), "")
}
