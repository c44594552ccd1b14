package quiz

import (
	"errors"
	"fmt"
	"time"
)

// Stratum is a half-open index range [Start, End) of the supplementary pool
// and the number of questions drawn from it.
type Stratum struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
	Count int `yaml:"count" json:"count"`
}

// Blueprint fixes how an exam is assembled and timed.
type Blueprint struct {
	PrimaryCount        int           `yaml:"primary_count" json:"primary_count"`
	SupplementaryNumber int           `yaml:"supplementary_topic" json:"supplementary_topic"`
	Strata              []Stratum     `yaml:"strata" json:"strata"`
	Duration            time.Duration `yaml:"duration" json:"duration"`
	// Exam topics are the numbered topics in [MinTopic, MaxTopic].
	MinTopic int `yaml:"min_topic" json:"min_topic"`
	MaxTopic int `yaml:"max_topic" json:"max_topic"`
}

func DefaultBlueprint() Blueprint {
	return Blueprint{
		PrimaryCount:        75,
		SupplementaryNumber: 17,
		Strata: []Stratum{
			{Start: 0, End: 65, Count: 3},
			{Start: 65, End: 95, Count: 3},
			{Start: 95, End: 105, Count: 3},
			{Start: 105, End: 220, Count: 4},
			{Start: 220, End: 250, Count: 4},
			{Start: 250, End: 350, Count: 8},
		},
		Duration: 45 * time.Minute,
		MinTopic: 1,
		MaxTopic: 16,
	}
}

// SupplementaryCount is the total number of questions the strata ask for.
func (b Blueprint) SupplementaryCount() int {
	total := 0
	for _, stratum := range b.Strata {
		total += stratum.Count
	}
	return total
}

func (b Blueprint) TotalCount() int {
	return b.PrimaryCount + b.SupplementaryCount()
}

func (b Blueprint) Validate() error {
	if b.PrimaryCount < 0 {
		return errors.New("primary_count must not be negative")
	}
	if b.SupplementaryNumber <= 0 {
		return errors.New("supplementary_topic must be a positive topic number")
	}
	// State tokens carry whole seconds.
	if b.Duration < time.Second {
		return fmt.Errorf("duration must be at least 1s, got %v", b.Duration)
	}
	if b.MinTopic > b.MaxTopic {
		return fmt.Errorf("min_topic %d is greater than max_topic %d", b.MinTopic, b.MaxTopic)
	}
	for idx, stratum := range b.Strata {
		if stratum.Start < 0 || stratum.End <= stratum.Start || stratum.Count < 0 {
			return fmt.Errorf("stratum %d: invalid range [%d,%d) count %d", idx, stratum.Start, stratum.End, stratum.Count)
		}
		if idx > 0 && stratum.Start < b.Strata[idx-1].End {
			return fmt.Errorf("stratum %d overlaps the previous one", idx)
		}
	}
	return nil
}

// IsExamTopic reports whether topic number n may be chosen as the primary
// topic.
func (b Blueprint) IsExamTopic(n int) bool {
	return n >= b.MinTopic && n <= b.MaxTopic && n != b.SupplementaryNumber
}
