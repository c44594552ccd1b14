package bank

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Topic is a named question bank backed by one CSV file.
type Topic struct {
	// Name is the display name: the file name without ".csv".
	Name string `json:"name"`
	// Path is the file name relative to the data directory. It is the
	// topic identity carried in state tokens.
	Path string `json:"path"`
	// Number is the leading "<n>." of the name, 0 when absent.
	Number int `json:"number"`
	// File is the path used to read the file.
	File string `json:"-"`
}

var topicNumberPattern = regexp.MustCompile(`^(\d+)\.`)

// TopicNumber extracts the leading topic number of a display name.
func TopicNumber(displayName string) int {
	match := topicNumberPattern.FindStringSubmatch(displayName)
	if match == nil {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}

type Catalog struct {
	dir    string
	topics []Topic
	byPath map[string]int
}

// Discover lists the *.csv files of dir. Numbered topics come first in
// numeric order, the rest follow by name.
func Discover(dir string) (*Catalog, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read topic dir: %w", err)
	}

	topics := make([]Topic, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		topics = append(topics, Topic{
			Name:   name,
			Path:   entry.Name(),
			Number: TopicNumber(name),
			File:   filepath.Join(dir, entry.Name()),
		})
	}
	return NewCatalog(dir, topics), nil
}

func NewCatalog(dir string, topics []Topic) *Catalog {
	sorted := make([]Topic, len(topics))
	copy(sorted, topics)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if (a.Number > 0) != (b.Number > 0) {
			return a.Number > 0
		}
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.Name < b.Name
	})

	byPath := make(map[string]int, len(sorted))
	for idx, topic := range sorted {
		byPath[topic.Path] = idx
	}
	return &Catalog{dir: dir, topics: sorted, byPath: byPath}
}

func (c *Catalog) Dir() string {
	return c.dir
}

func (c *Catalog) Topics() []Topic {
	out := make([]Topic, len(c.topics))
	copy(out, c.topics)
	return out
}

func (c *Catalog) ByPath(path string) (Topic, bool) {
	idx, ok := c.byPath[strings.TrimSpace(path)]
	if !ok {
		return Topic{}, false
	}
	return c.topics[idx], true
}

// ByNumber returns the first topic carrying number n.
func (c *Catalog) ByNumber(n int) (Topic, bool) {
	if n <= 0 {
		return Topic{}, false
	}
	for _, topic := range c.topics {
		if topic.Number == n {
			return topic, true
		}
	}
	return Topic{}, false
}

// Resolve accepts a topic path, a display name or a bare topic number.
func (c *Catalog) Resolve(ref string) (Topic, bool) {
	ref = strings.TrimSpace(ref)
	if topic, ok := c.ByPath(ref); ok {
		return topic, true
	}
	for _, topic := range c.topics {
		if topic.Name == ref {
			return topic, true
		}
	}
	if n, err := strconv.Atoi(ref); err == nil {
		return c.ByNumber(n)
	}
	return Topic{}, false
}
