package producer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"S3ArchiveBuilder/internal/archive"
	"S3ArchiveBuilder/internal/checkpoint"
	"S3ArchiveBuilder/internal/s3"
)

// pagedLister serves keys in lexicographic order, pageSize at a time.
type pagedLister struct {
	keys     []string
	pageSize int
	calls    []string
}

func (l *pagedLister) ListPage(_ context.Context, prefix, startAfter, token string) (s3.Page, error) {
	l.calls = append(l.calls, fmt.Sprintf("%s|%s|%s", prefix, startAfter, token))
	var matching []string
	for _, k := range l.keys {
		if strings.HasPrefix(k, prefix) && k > startAfter {
			matching = append(matching, k)
		}
	}
	start := 0
	if token != "" {
		fmt.Sscanf(token, "%d", &start)
	}
	size := l.pageSize
	if size <= 0 {
		size = len(matching)
	}
	end := start + size
	if end > len(matching) {
		end = len(matching)
	}
	page := s3.Page{}
	for _, k := range matching[start:end] {
		page.Objects = append(page.Objects, s3.ObjectInfo{Key: k, Size: int64(len(k))})
	}
	if end < len(matching) {
		page.Truncated = true
		page.NextToken = fmt.Sprintf("%d", end)
	}
	return page, nil
}

type collectPublisher struct {
	contexts []archive.Context
	err      error
}

func (p *collectPublisher) Publish(_ context.Context, c archive.Context) error {
	if p.err != nil {
		return p.err
	}
	p.contexts = append(p.contexts, c)
	return nil
}

type lines struct{ got []string }

func (l *lines) Line(s string) { l.got = append(l.got, s) }

type memCheckpoint struct{ markers []checkpoint.Marker }

func (m *memCheckpoint) Set(mk checkpoint.Marker) error {
	m.markers = append(m.markers, mk)
	return nil
}

func run(t *testing.T, keys []string, pageSize int) (*collectPublisher, Summary, error) {
	t.Helper()
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	pub := &collectPublisher{}
	e := New(Config{Lister: &pagedLister{keys: sorted, pageSize: pageSize}, Publisher: pub, Mode: "run"})
	sum, err := e.Produce(context.Background(), "", "", "")
	return pub, sum, err
}

func TestProduce_ParentChangeFlushes(t *testing.T) {
	pub, sum, err := run(t, []string{"a/1-1-2020.log", "a/6-1-2020.log", "b/1-1-2020.log"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pub.contexts) != 2 {
		t.Fatalf("contexts = %d, want 2: %+v", len(pub.contexts), pub.contexts)
	}
	first, second := pub.contexts[0], pub.contexts[1]
	if first.Prefix != "a" || first.Year != "2020" || len(first.Objects) != 2 {
		t.Errorf("first = %+v", first)
	}
	if second.Prefix != "b" || second.Year != "2020" || len(second.Objects) != 1 {
		t.Errorf("second = %+v", second)
	}
	if sum.Contexts != 2 || sum.Matched != 3 || sum.Published != 3 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestProduce_YearSplitAscending(t *testing.T) {
	keys := []string{
		"dev/1-5-2021.log",
		"dev/11-30-2020.log",
		"dev/3-1-2021.log",
		"dev/4-4-2020.log",
	}
	pub, _, err := run(t, keys, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(pub.contexts) != 2 {
		t.Fatalf("contexts = %+v", pub.contexts)
	}
	if pub.contexts[0].Year != "2020" || pub.contexts[1].Year != "2021" {
		t.Errorf("years = %s, %s", pub.contexts[0].Year, pub.contexts[1].Year)
	}
	for _, c := range pub.contexts {
		if len(c.Objects) != 2 {
			t.Errorf("context %s has %d objects", c.Year, len(c.Objects))
		}
		for i := 1; i < len(c.Objects); i++ {
			if archive.Less(c.Objects[i], c.Objects[i-1]) {
				t.Errorf("context %s not in timestamp order", c.Year)
			}
		}
	}
	if got := pub.contexts[0].Objects[0].Key; got != "dev/4-4-2020.log" {
		t.Errorf("earliest object = %s", got)
	}
}

func TestProduce_EqualTimestampsKept(t *testing.T) {
	pub, _, err := run(t, []string{"a/1-1-2020.log", "a/1-1-2020.txt", "a/01-01-2020.log"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pub.contexts) != 1 || len(pub.contexts[0].Objects) != 3 {
		t.Fatalf("contexts = %+v", pub.contexts)
	}
	objs := pub.contexts[0].Objects
	if objs[0].Key != "a/01-01-2020.log" || objs[2].Key != "a/1-1-2020.txt" {
		t.Errorf("ties not ordered by key: %v, %v, %v", objs[0].Key, objs[1].Key, objs[2].Key)
	}
}

func TestProduce_NoLossNoDuplication(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	prefixes := []string{"d1/x", "d1/y", "d2/x", "d3"}
	seen := map[string]bool{}
	var keys []string
	for len(keys) < 400 {
		k := fmt.Sprintf("%s/%d-%d-%d.log", prefixes[rng.Intn(len(prefixes))], 1+rng.Intn(12), 1+rng.Intn(28), 2018+rng.Intn(4))
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	pub, _, err := run(t, keys, 37)
	if err != nil {
		t.Fatal(err)
	}
	count := map[string]int{}
	for _, c := range pub.contexts {
		if len(c.Objects) == 0 {
			t.Errorf("empty context published: %+v", c)
		}
		for _, o := range c.Objects {
			count[o.Key]++
			parent, _ := SplitKey(o.Key)
			if parent != c.Prefix {
				t.Errorf("object %s in context with prefix %s", o.Key, c.Prefix)
			}
			if got := fmt.Sprintf("%04d", o.Date.Year()); got != c.Year {
				t.Errorf("object %s in context with year %s", o.Key, c.Year)
			}
		}
	}
	for _, k := range keys {
		if count[k] != 1 {
			t.Errorf("key %s published %d times", k, count[k])
		}
	}
	if len(count) != len(keys) {
		t.Errorf("published %d distinct keys, want %d", len(count), len(keys))
	}
}

func TestProduce_KeyFilterAndListingLog(t *testing.T) {
	keys := []string{"a/1-1-2020.log", "a/1-2-2020.tmp", "a/readme", "b/3-3-2020.log"}
	pub := &collectPublisher{}
	listing := &lines{}
	e := New(Config{Lister: &pagedLister{keys: keys}, Publisher: pub, Listing: listing})
	sum, err := e.Produce(context.Background(), "", "", ".log")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Listed != 4 || sum.Matched != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if len(listing.got) != 2 || listing.got[0] != "a/1-1-2020.log" || listing.got[1] != "b/3-3-2020.log" {
		t.Errorf("listing log = %v", listing.got)
	}
	if len(pub.contexts) != 2 {
		t.Errorf("contexts = %d", len(pub.contexts))
	}
}

func TestProduce_PassesPrefixAndStartAfter(t *testing.T) {
	l := &pagedLister{keys: []string{"logs/a/1-1-2020.log", "logs/a/2-1-2020.log", "logs/b/1-1-2020.log", "other/1-1-2020.log"}, pageSize: 1}
	pub := &collectPublisher{}
	e := New(Config{Lister: l, Publisher: pub})
	if _, err := e.Produce(context.Background(), "logs/", "logs/a/1-1-2020.log", ""); err != nil {
		t.Fatal(err)
	}
	if l.calls[0] != "logs/|logs/a/1-1-2020.log|" {
		t.Errorf("first call = %s", l.calls[0])
	}
	if len(l.calls) != 2 {
		t.Errorf("calls = %v", l.calls)
	}
	if len(pub.contexts) != 2 || len(pub.contexts[0].Objects) != 1 || pub.contexts[0].Objects[0].Key != "logs/a/2-1-2020.log" {
		t.Errorf("contexts = %+v", pub.contexts)
	}
}

func TestProduce_MalformedTimestampFailsPass(t *testing.T) {
	keys := []string{"a/1-1-2020.log", "b/1-1-2020.log", "b/notes.txt", "c/1-1-2020.log"}
	pub := &collectPublisher{}
	e := New(Config{Lister: &pagedLister{keys: keys}, Publisher: pub})
	_, err := e.Produce(context.Background(), "", "", "")
	if !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("err = %v, want ErrMalformedTimestamp", err)
	}
	if !strings.Contains(err.Error(), "b/notes.txt") {
		t.Errorf("error should name the key: %v", err)
	}
	if len(pub.contexts) != 1 || pub.contexts[0].Prefix != "a" {
		t.Errorf("contexts = %+v, want only prefix a", pub.contexts)
	}
}

func TestProduce_PublishError(t *testing.T) {
	boom := errors.New("queue down")
	e := New(Config{Lister: &pagedLister{keys: []string{"a/1-1-2020.log"}}, Publisher: &collectPublisher{err: boom}})
	if _, err := e.Produce(context.Background(), "", "", ""); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestProduce_Checkpoint(t *testing.T) {
	keys := []string{"a/1-1-2020.log", "a/2-1-2020.log", "b/1-1-2020.log", "c/1-1-2020.log"}
	cp := &memCheckpoint{}
	e := New(Config{Lister: &pagedLister{keys: keys}, Publisher: &collectPublisher{}, Checkpoint: cp})
	sum, err := e.Produce(context.Background(), "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a/2-1-2020.log", "b/1-1-2020.log", "c/1-1-2020.log"}
	if len(cp.markers) != len(want) {
		t.Fatalf("markers = %+v", cp.markers)
	}
	for i, w := range want {
		if cp.markers[i].LastKey != w {
			t.Errorf("marker %d = %s, want %s", i, cp.markers[i].LastKey, w)
		}
	}
	if !cp.markers[2].Complete || cp.markers[1].Complete {
		t.Error("only the final marker should be complete")
	}
	if sum.LastKey != "c/1-1-2020.log" {
		t.Errorf("LastKey = %s", sum.LastKey)
	}
}

func TestProduce_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub := &collectPublisher{}
	e := New(Config{Lister: &pagedLister{keys: []string{"a/1-1-2020.log"}}, Publisher: pub})
	if _, err := e.Produce(ctx, "", "", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if len(pub.contexts) != 0 {
		t.Error("nothing should be published after cancel")
	}
}

func TestLogPublisher(t *testing.T) {
	out := &lines{}
	pub, _, err := run(t, []string{"a/1-1-2020.log"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := (LogPublisher{Out: out}).Publish(context.Background(), pub.contexts[0]); err != nil {
		t.Fatal(err)
	}
	if len(out.got) != 1 {
		t.Fatalf("lines = %v", out.got)
	}
	c, err := archive.Decode(out.got[0])
	if err != nil {
		t.Fatalf("logged context does not decode: %v", err)
	}
	if c.Prefix != "a" || len(c.Objects) != 1 {
		t.Errorf("decoded = %+v", c)
	}
}
