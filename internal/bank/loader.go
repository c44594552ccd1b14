package bank

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ExpectedColumns is the fixed topic file layout:
// id, question, option1..option4, correct_answer, explanation.
const ExpectedColumns = 8

var (
	ErrTopicNotFound   = errors.New("topic file not found")
	ErrColumnCount     = errors.New("unexpected column count")
	ErrUnparsable      = errors.New("topic file cannot be parsed")
	ErrMalformedAnswer = errors.New("malformed correct answer")
)

// AnswerPolicy controls what happens to a row whose correct_answer field does
// not start with a digit 1-4.
type AnswerPolicy int

const (
	// AnswerLenient defaults the row to option 1 and records a warning.
	AnswerLenient AnswerPolicy = iota
	// AnswerStrict rejects the whole file.
	AnswerStrict
)

func ParseAnswerPolicy(value string) (AnswerPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "lenient":
		return AnswerLenient, nil
	case "strict":
		return AnswerStrict, nil
	default:
		return AnswerLenient, fmt.Errorf("unknown answer policy %q", value)
	}
}

var delimiters = []rune{',', ';', '\t'}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadFile reads one topic file. The first delimiter (comma, semicolon, tab)
// that parses the file into consistent 8-column records wins.
func LoadFile(topic Topic, policy AnswerPolicy) (*Pool, error) {
	data, err := os.ReadFile(topic.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTopicNotFound, topic.File)
		}
		return nil, err
	}
	return Parse(topic, data, policy)
}

// Parse decodes topic file content. Source labels default to the file's base
// name.
func Parse(topic Topic, data []byte, policy AnswerPolicy) (*Pool, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	source := topic.Path
	if source == "" {
		source = filepath.Base(topic.File)
	}

	var (
		records  [][]string
		colCount int
		lastErr  error
	)
	for _, delimiter := range delimiters {
		candidate, err := readRecords(data, delimiter)
		if err != nil {
			lastErr = err
			continue
		}
		if len(candidate) == 0 {
			lastErr = errors.New("empty file")
			continue
		}
		if len(candidate[0]) != ExpectedColumns {
			if colCount == 0 {
				colCount = len(candidate[0])
			}
			continue
		}
		records = candidate
		break
	}

	if records == nil {
		if colCount > 0 {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrColumnCount, colCount, ExpectedColumns)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, lastErr)
	}

	// records[0] is the header row.
	questions := make([]Question, 0, len(records)-1)
	var warnings []string
	for idx, row := range records[1:] {
		number := idx + 1
		correctIndex, ok := parseCorrectAnswer(row[6])
		if !ok {
			if policy == AnswerStrict {
				return nil, fmt.Errorf("%w: row %d has %q", ErrMalformedAnswer, number, row[6])
			}
			warnings = append(warnings, fmt.Sprintf("row %d: correct answer %q is not 1-4, defaulted to option 1", number, row[6]))
		}

		question := Question{
			Ref:          strings.TrimSpace(row[0]),
			Number:       number,
			Question:     row[1],
			Options:      []string{row[2], row[3], row[4], row[5]},
			CorrectIndex: correctIndex,
			Explanation:  strings.TrimSpace(row[7]),
			Source:       source,
		}
		question.ID = MakeQuestionID(question)
		questions = append(questions, question)
	}

	return newPool(topic, questions, warnings), nil
}

func readRecords(data []byte, delimiter rune) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	// 0 means every record must match the header's field count.
	reader.FieldsPerRecord = 0
	return reader.ReadAll()
}

// parseCorrectAnswer maps the first character of the field ("1".."4") to an
// option index. Anything else reports ok=false with index 0.
func parseCorrectAnswer(field string) (int, bool) {
	value := strings.TrimSpace(field)
	if value == "" {
		return 0, false
	}
	first := value[0]
	if first < '1' || first > '0'+OptionCount {
		return 0, false
	}
	return int(first - '1'), true
}
