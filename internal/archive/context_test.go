package archive

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func sampleContext() Context {
	d1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	return Context{
		Prefix: "dev1/logs",
		Year:   "2020",
		Objects: []ObjectDescriptor{
			{Key: "dev1/logs/1-1-2020.log", Size: 12, LocalFileName: "1-1-2020.log", Date: d1},
			{Key: "dev1/logs/6-1-2020.log", Size: 1 << 40, LocalFileName: "6-1-2020.log", Date: d2},
		},
	}
}

func TestContext_RoundTrip(t *testing.T) {
	c := sampleContext()
	body, err := c.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(body)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, c) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, c)
	}
}

func TestContext_WireFieldNames(t *testing.T) {
	body, err := sampleContext().Claim("/tmp/x", "a.tar.gz", "rh").Marshal()
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"prefix"`, `"year"`, `"s3ArchiveObjects"`, `"localDirectory":"/tmp/x"`, `"localArchiveName":"a.tar.gz"`, `"deleteRequestHandle":"rh"`, `"size":"12"`, `"localFileName"`, `"date":"2020-01-01T00:00:00Z"`} {
		if !strings.Contains(body, field) {
			t.Errorf("body missing %s: %s", field, body)
		}
	}
}

func TestContext_ClaimCopies(t *testing.T) {
	c := sampleContext()
	claimed := c.Claim("/dir", "name", "token")
	claimed.Objects[0].Key = "changed"
	if c.Objects[0].Key == "changed" {
		t.Error("Claim shares the object slice with its receiver")
	}
	if c.LocalDirectory != "" || c.DeleteToken != "" {
		t.Error("Claim mutated its receiver")
	}
	if claimed.LocalDirectory != "/dir" || claimed.LocalArchiveName != "name" || claimed.DeleteToken != "token" {
		t.Errorf("claimed = %+v", claimed)
	}
}

func TestLess(t *testing.T) {
	early := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	a := ObjectDescriptor{Key: "b", Date: early}
	b := ObjectDescriptor{Key: "a", Date: late}
	if !Less(a, b) || Less(b, a) {
		t.Error("timestamp should dominate key order")
	}
	c := ObjectDescriptor{Key: "a", Date: early}
	if !Less(c, a) || Less(a, c) {
		t.Error("equal timestamps should order by key")
	}
	if Less(a, a) {
		t.Error("Less must be irreflexive")
	}
}

func TestTotalSize(t *testing.T) {
	if got := sampleContext().TotalSize(); got != 12+(1<<40) {
		t.Errorf("TotalSize = %d", got)
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		prefix, year, want string
	}{
		{"dev1/logs/2020", "2020", "archive_dev1_2020.tar.gz"},
		{"dev1", "2021", "archive_dev1_2021.tar.gz"},
		{"/dev2/x", "2019", "archive_dev2_2019.tar.gz"},
		{"", "2020", "archive__2020.tar.gz"},
	}
	for _, tt := range tests {
		if got := Name("archive", tt.prefix, tt.year); got != tt.want {
			t.Errorf("Name(%q, %q) = %q, want %q", tt.prefix, tt.year, got, tt.want)
		}
	}
}
