package checkpoint

import (
	"path/filepath"
	"testing"
)

func TestStore_SetGetList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoint")
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, err := s.Get("logs/"); err != nil || ok {
		t.Fatalf("Get on empty store = ok %v, err %v", ok, err)
	}
	if err := s.Set(Marker{Prefix: "logs/", LastKey: "logs/a/1-1-2020.log", Contexts: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(Marker{Prefix: "", LastKey: "z", Complete: true}); err != nil {
		t.Fatal(err)
	}
	m, ok, err := s.Get("logs/")
	if err != nil || !ok {
		t.Fatalf("Get = ok %v, err %v", ok, err)
	}
	if m.LastKey != "logs/a/1-1-2020.log" || m.Contexts != 1 || m.UpdatedAt.IsZero() {
		t.Errorf("marker = %+v", m)
	}

	all, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Prefix != "" || all[1].Prefix != "logs/" {
		t.Errorf("List = %+v", all)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if m, ok, _ := s.Get("logs/"); !ok || m.LastKey != "logs/a/1-1-2020.log" {
		t.Errorf("marker not persisted: %+v", m)
	}
	if err := s.Delete("logs/"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get("logs/"); ok {
		t.Error("marker still present after Delete")
	}
}
