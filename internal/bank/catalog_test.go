package bank

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTopicNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{name: "17. Supplementary", want: 17},
		{name: "3.Intro", want: 3},
		{name: "Intro 3.", want: 0},
		{name: "", want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TopicNumber(tc.name); got != tc.want {
				t.Fatalf("TopicNumber(%q) = %d, want %d", tc.name, got, tc.want)
			}
		})
	}
}

func TestDiscoverSortsNumberedTopicsFirst(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10. Ten.csv", "2. Two.csv", "notes.txt", "Extra.csv", "17. Supp.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(header), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	catalog, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	topics := catalog.Topics()
	want := []string{"2. Two", "10. Ten", "17. Supp", "Extra"}
	if len(topics) != len(want) {
		t.Fatalf("topics = %+v", topics)
	}
	for idx, name := range want {
		if topics[idx].Name != name {
			t.Fatalf("topic %d = %q, want %q", idx, topics[idx].Name, name)
		}
	}

	if topic, ok := catalog.ByNumber(17); !ok || topic.Path != "17. Supp.csv" {
		t.Fatalf("ByNumber(17) = %+v, %v", topic, ok)
	}
	if topic, ok := catalog.Resolve("2"); !ok || topic.Name != "2. Two" {
		t.Fatalf("Resolve(2) = %+v, %v", topic, ok)
	}
	if topic, ok := catalog.Resolve("Extra"); !ok || topic.Number != 0 {
		t.Fatalf("Resolve(Extra) = %+v, %v", topic, ok)
	}
	if _, ok := catalog.Resolve("99"); ok {
		t.Fatalf("Resolve(99) should fail")
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
