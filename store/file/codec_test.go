package file_test

import (
	"errors"
	"testing"

	"github.com/collapsinghierarchy/rfidgate/model"
	"github.com/collapsinghierarchy/rfidgate/store/file"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		line string
		want model.UidRecord
		bad  bool
	}{
		{line: "AA:BB:CC:DD,Alice,A", want: model.UidRecord{UID: "AA:BB:CC:DD", Name: "Alice", Role: "A"}},
		{line: " aa:bb ,,u \r", want: model.UidRecord{UID: "AA:BB", Name: "", Role: "U"}},
		{line: "AA,a,b,c,U", want: model.UidRecord{UID: "AA", Name: "a,b,c", Role: "U"}},
		{line: "", bad: true},
		{line: "AA:BB:CC:DD", bad: true},
		{line: "AA:BB:CC:DD,Alice", bad: true},
		{line: ",Bob,A", bad: true},
		{line: "  ,Bob,A", bad: true},
	}
	for _, c := range cases {
		got, err := file.ParseLine(c.line)
		if c.bad {
			if !errors.Is(err, file.ErrMalformedRecord) {
				t.Errorf("ParseLine(%q): want ErrMalformedRecord, got %v", c.line, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLine(%q): %v", c.line, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseLine(%q): got %+v want %+v", c.line, got, c.want)
		}
	}
}

func TestFormatLine(t *testing.T) {
	got := file.FormatLine(model.UidRecord{UID: " aa:bb:cc:dd ", Name: " Alice ", Role: "a"})
	if got != "AA:BB:CC:DD,Alice,A" {
		t.Fatalf("FormatLine: got %q", got)
	}
}
