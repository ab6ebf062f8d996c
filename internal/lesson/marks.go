package lesson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type rowType int

const (
	rowLine rowType = iota
	rowPractice
	rowInput
)

// markRow is a classified timing mark. Rows only live for the duration of a
// load.
type markRow struct {
	time    int64
	rowType rowType
	name    string
}

// maxMarkLine bounds a single record of the marks stream.
var maxMarkLine = 16 * 1024 * 1024

// parseMarks scans a newline-delimited marks stream. Lines that are not
// object-shaped are skipped, as are records of any type other than ssml
// whatever their other fields hold. An object-shaped line that is not valid
// JSON, or an ssml record with a mistyped value or time, is fatal.
func parseMarks(data []byte, url string) ([]markRow, error) {
	var rows []markRow

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, min(64*1024, maxMarkLine)), maxMarkLine)

	i := 0
	for ; sc.Scan(); i++ {
		text := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
			continue
		}

		var rec map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, &StreamParseError{URL: url, Line: i, Cause: err}
		}
		var typ string
		if raw, ok := rec["type"]; !ok || json.Unmarshal(raw, &typ) != nil || typ != "ssml" {
			continue
		}

		var (
			value  string
			millis float64
		)
		if raw, ok := rec["value"]; ok {
			if err := json.Unmarshal(raw, &value); err != nil {
				return nil, &StreamParseError{URL: url, Line: i, Cause: err}
			}
		}
		if raw, ok := rec["time"]; ok {
			if err := json.Unmarshal(raw, &millis); err != nil {
				return nil, &StreamParseError{URL: url, Line: i, Cause: err}
			}
		}
		if value == "" {
			continue
		}

		row := markRow{time: int64(millis), name: value}
		switch {
		case strings.HasPrefix(value, "line"):
			row.rowType = rowLine
		case value == "practice":
			row.rowType = rowPractice
		case isInputName(value):
			row.rowType = rowInput
		default:
			continue
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		// Scan stopped on line i without returning it.
		return nil, &StreamParseError{URL: url, Line: i, Cause: err}
	}
	return rows, nil
}

// parseInputName reads branch targets from names like "yes2_no0_silence1".
// Fields are separated by underscores and may appear in any order. The whole
// suffix must be an integer: "no2abc" is not read as 2, and a field whose
// number does not parse is ignored, so a name with no valid field is not an
// input mark.
func parseInputName(name string) (yes, no, silence *int) {
	for _, field := range strings.Split(name, "_") {
		switch {
		case strings.HasPrefix(field, "yes"):
			if n, ok := atoi(field[len("yes"):]); ok {
				yes = &n
			}
		case strings.HasPrefix(field, "no"):
			if n, ok := atoi(field[len("no"):]); ok {
				no = &n
			}
		case strings.HasPrefix(field, "silence"):
			if n, ok := atoi(field[len("silence"):]); ok {
				silence = &n
			}
		}
	}
	return yes, no, silence
}

func isInputName(name string) bool {
	yes, no, silence := parseInputName(name)
	return yes != nil || no != nil || silence != nil
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}
