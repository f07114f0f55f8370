package storage

import (
	"testing"
)

func TestOptionsRoundTrip(t *testing.T) {
	s, err := OpenAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	opts, err := s.LoadOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Threads != 1 || opts.HashMB != 64 {
		t.Fatalf("unexpected defaults: %+v", opts)
	}

	opts.Threads = 4
	opts.HashMB = 256
	opts.EvalFile = "chepp.net"
	if err := s.SaveOptions(opts); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.LoadOptions()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Threads != 4 || loaded.HashMB != 256 || loaded.EvalFile != "chepp.net" {
		t.Fatalf("options not persisted: %+v", loaded)
	}
}

func TestAnalysisRoundTrip(t *testing.T) {
	s, err := OpenAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	const hash = uint64(0xfeedface12345678)

	if _, found, err := s.LoadAnalysis(hash); err != nil || found {
		t.Fatalf("expected miss on empty db, found=%v err=%v", found, err)
	}

	rec := &AnalysisRecord{BestMove: "e2e4", Score: 31, Depth: 12, Nodes: 123456}
	if err := s.SaveAnalysis(hash, rec); err != nil {
		t.Fatal(err)
	}

	loaded, found, err := s.LoadAnalysis(hash)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("record not found after save")
	}
	if loaded.BestMove != "e2e4" || loaded.Score != 31 || loaded.Depth != 12 || loaded.Nodes != 123456 {
		t.Fatalf("record mangled: %+v", loaded)
	}
}
