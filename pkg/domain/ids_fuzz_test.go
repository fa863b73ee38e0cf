package domain

import (
	"strconv"
	"testing"
)

// FuzzParseID checks that parsing never panics and that accepted ids
// round-trip.
func FuzzParseID(f *testing.F) {
	f.Add("")
	f.Add("1")
	f.Add("-1")
	f.Add("9223372036854775808")
	f.Add("'; DROP TABLE enrollment;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseID(input)
		if err != nil {
			return
		}
		if id <= 0 {
			t.Errorf("accepted non-positive id %d", id)
		}
		again, err := ParseID(strconv.FormatInt(id, 10))
		if err != nil || again != id {
			t.Errorf("id %d failed round-trip", id)
		}
	})
}

// FuzzParseDate checks that accepted dates round-trip through String.
func FuzzParseDate(f *testing.F) {
	f.Add("2010-03-15")
	f.Add("2024-02-30")
	f.Add("")

	f.Fuzz(func(t *testing.T, input string) {
		d, err := ParseDate(input)
		if err != nil {
			return
		}
		again, err := ParseDate(d.String())
		if err != nil || !again.Equal(d) {
			t.Errorf("date %q failed round-trip", input)
		}
	})
}
