package lesson

// buildLines turns LINE rows into contiguous lines. Each line ends where the
// next begins; the last ends at endMillis.
func buildLines(rows []markRow, texts []string, endMillis int64) []Line {
	var lines []Line
	for i, row := range rows {
		if row.rowType != rowLine {
			continue
		}
		to := endMillis
		for _, next := range rows[i+1:] {
			if next.rowType == rowLine {
				to = next.time
				break
			}
		}

		var text string
		if n := len(lines); n < len(texts) {
			text = texts[n]
		}
		lines = append(lines, Line{From: row.time, To: to, Text: text})
	}
	return lines
}

// lineContaining returns the index of the line whose [From, To) contains
// millis, searching from the last line backward. Times before every line map
// to line 0.
func lineContaining(millis int64, lines []Line) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].From <= millis {
			return i
		}
	}
	return 0
}

func buildPracticeAfterLineNos(rows []markRow, lines []Line) []int {
	var lineNos []int
	for _, row := range rows {
		if row.rowType == rowPractice {
			lineNos = append(lineNos, lineContaining(row.time, lines))
		}
	}
	return lineNos
}

// buildInputEvents places INPUT rows by time, except that a final INPUT row
// always belongs to the last line. Recorded timestamps for trailing input
// cues land before the start of the line they follow.
func buildInputEvents(rows []markRow, lines []Line) []InputEvent {
	var events []InputEvent
	for i, row := range rows {
		if row.rowType != rowInput {
			continue
		}
		afterLineNo := lineContaining(row.time, lines)
		if i == len(rows)-1 {
			afterLineNo = len(lines) - 1
		}
		yes, no, silence := parseInputName(row.name)
		events = append(events, InputEvent{
			AfterLineNo:   afterLineNo,
			YesLineNo:     yes,
			NoLineNo:      no,
			SilenceLineNo: silence,
		})
	}
	return events
}
