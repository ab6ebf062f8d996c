package lesson

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/erikh2000/comprendo-player/internal/audio"
)

type memFetcher map[string]string

func (m memFetcher) Get(_ context.Context, url string) ([]byte, error) {
	s, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("no resource at %s", url)
	}
	return []byte(s), nil
}

// silentAudio returns a buffer lasting millis at 1 kHz mono.
func silentAudio(t *testing.T, millis int) *audio.Buffer {
	t.Helper()
	buf, err := audio.NewBuffer(make([]byte, millis*2), 1000, 1)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

const threeLineSSML = `<speak><mark name="line0"/>Vocabulario: <mark name="line1"/><prosody rate="slow">¿Tienes</prosody> hambre? <mark name="line2"/>Sí.</speak>`

func newTestLoader(t *testing.T, descriptor, marks string, millis int) *Loader {
	t.Helper()
	backend := audio.NewMockBackend()
	backend.Buffers["https://cdn.example.com/l1.mp3"] = silentAudio(t, millis)
	f := memFetcher{
		"https://example.com/l1.json":      descriptor,
		"https://cdn.example.com/l1.marks": marks,
	}
	return NewLoader(f, backend, nil)
}

func descriptorJSON(ssml string) string {
	return fmt.Sprintf(`{"mp3url":"http://cdn.example.com/l1.mp3","marksUrl":"http://cdn.example.com/l1.marks","ssml":%q,"lessonName":"Uno"}`, ssml)
}

func TestLoadLinesAndPractice(t *testing.T) {
	marks := strings.Join([]string{
		`{"time":0,"type":"ssml","start":1,"end":2,"value":"line0"}`,
		`{"time":1000,"type":"ssml","value":"line1"}`,
		`{"time":1200,"type":"word","value":"hambre"}`,
		`{"time":"1250","type":"sentence","value":"¿Tienes hambre?"}`,
		`{"time":1300,"type":"viseme","value":{"v":"p"}}`,
		`{"time":1350,"value":["untyped"]}`,
		`{"time":1500,"type":"ssml","value":"practice"}`,
		`   {"time":3000,"type":"ssml","value":"line2"}   `,
		`not json at all`,
		`{"time":3500,"type":"ssml","value":"bookmark"}`,
		`{"time":3600,"type":"ssml","value":""}`,
		``,
	}, "\n")

	l := newTestLoader(t, descriptorJSON(threeLineSSML), marks, 4000)
	lesson, err := l.Load(context.Background(), "https://example.com/l1.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if lesson.Name != "Uno" {
		t.Errorf("Name = %q, want Uno", lesson.Name)
	}
	want := []Line{
		{From: 0, To: 1000, Text: "Vocabulario:"},
		{From: 1000, To: 3000, Text: "¿Tienes hambre?"},
		{From: 3000, To: 4000, Text: "Sí."},
	}
	if len(lesson.Lines) != len(want) {
		t.Fatalf("Lines = %+v, want %+v", lesson.Lines, want)
	}
	for i := range want {
		if lesson.Lines[i] != want[i] {
			t.Errorf("Lines[%d] = %+v, want %+v", i, lesson.Lines[i], want[i])
		}
	}
	for i := 0; i+1 < len(lesson.Lines); i++ {
		if lesson.Lines[i].To != lesson.Lines[i+1].From {
			t.Errorf("line %d ends at %d but line %d starts at %d", i, lesson.Lines[i].To, i+1, lesson.Lines[i+1].From)
		}
	}

	if len(lesson.PracticeAfterLineNos) != 1 || lesson.PracticeAfterLineNos[0] != 1 {
		t.Errorf("PracticeAfterLineNos = %v, want [1]", lesson.PracticeAfterLineNos)
	}
	if !lesson.IsPracticeAfter(1) || lesson.IsPracticeAfter(0) {
		t.Error("IsPracticeAfter() disagrees with PracticeAfterLineNos")
	}
	if !lesson.Lines[0].IsHeader() || lesson.Lines[1].IsHeader() {
		t.Error("IsHeader() misclassified lines")
	}
	if len(lesson.InputEvents) != 0 {
		t.Errorf("InputEvents = %+v, want none", lesson.InputEvents)
	}
}

func intp(n int) *int { return &n }

func eqTarget(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestLoadInputEvents(t *testing.T) {
	marks := strings.Join([]string{
		`{"time":0,"type":"ssml","value":"line0"}`,
		`{"time":1000,"type":"ssml","value":"line1"}`,
		`{"time":1500,"type":"ssml","value":"yes2_no0_silence1"}`,
		`{"time":3000,"type":"ssml","value":"line2"}`,
		`{"time":10,"type":"ssml","value":"silence-1_no1"}`,
	}, "\n")

	l := newTestLoader(t, descriptorJSON(threeLineSSML), marks, 4000)
	lesson, err := l.Load(context.Background(), "https://example.com/l1.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []InputEvent{
		{AfterLineNo: 1, YesLineNo: intp(2), NoLineNo: intp(0), SilenceLineNo: intp(1)},
		{AfterLineNo: 2, NoLineNo: intp(1), SilenceLineNo: intp(BeforeFirstLine)},
	}
	if len(lesson.InputEvents) != len(want) {
		t.Fatalf("InputEvents = %+v, want %d events", lesson.InputEvents, len(want))
	}
	for i, w := range want {
		got := lesson.InputEvents[i]
		if got.AfterLineNo != w.AfterLineNo ||
			!eqTarget(got.YesLineNo, w.YesLineNo) ||
			!eqTarget(got.NoLineNo, w.NoLineNo) ||
			!eqTarget(got.SilenceLineNo, w.SilenceLineNo) {
			t.Errorf("InputEvents[%d] mismatch: after=%d", i, got.AfterLineNo)
		}
	}

	if e, ok := lesson.InputEventAfter(2); !ok || e.YesLineNo != nil {
		t.Errorf("InputEventAfter(2) = %+v, %v", e, ok)
	}
	if _, ok := lesson.InputEventAfter(0); ok {
		t.Error("InputEventAfter(0) found an event")
	}
}

func TestLoadFailures(t *testing.T) {
	goodMarks := `{"time":0,"type":"ssml","value":"line0"}`

	tests := []struct {
		name       string
		descriptor string
		marks      string
		want       error
		check      func(t *testing.T, err error)
	}{
		{
			name:       "missing audio url",
			descriptor: `{"marksUrl":"https://cdn.example.com/l1.marks","ssml":"x","lessonName":"Uno"}`,
			marks:      goodMarks,
			want:       ErrDescriptor,
			check: func(t *testing.T, err error) {
				var de *DescriptorError
				if !errors.As(err, &de) || de.Field != "mp3Url" {
					t.Errorf("error = %v, want DescriptorError for mp3Url", err)
				}
			},
		},
		{
			name:       "missing lesson name",
			descriptor: `{"audioUrl":"https://cdn.example.com/l1.mp3","marksUrl":"https://cdn.example.com/l1.marks","ssml":"x"}`,
			marks:      goodMarks,
			want:       ErrDescriptor,
			check: func(t *testing.T, err error) {
				var de *DescriptorError
				if !errors.As(err, &de) || de.Field != "lessonName" {
					t.Errorf("error = %v, want DescriptorError for lessonName", err)
				}
			},
		},
		{
			name:       "malformed object row",
			descriptor: descriptorJSON(threeLineSSML),
			marks:      goodMarks + "\n" + `{"time":10,"type":"ssml",value:"line1"}`,
			want:       ErrStreamParse,
			check: func(t *testing.T, err error) {
				var pe *StreamParseError
				if !errors.As(err, &pe) || pe.Line != 1 {
					t.Errorf("error = %v, want StreamParseError at line 1", err)
				}
			},
		},
		{
			name:       "mistyped ssml row",
			descriptor: descriptorJSON(threeLineSSML),
			marks:      goodMarks + "\n" + `{"time":"soon","type":"word"}` + "\n" + `{"time":10,"type":"ssml","value":7}`,
			want:       ErrStreamParse,
			check: func(t *testing.T, err error) {
				var pe *StreamParseError
				if !errors.As(err, &pe) || pe.Line != 2 {
					t.Errorf("error = %v, want StreamParseError at line 2", err)
				}
			},
		},
		{
			name:       "ssml gap",
			descriptor: descriptorJSON(`<mark name="line0"/>Uno <mark name="line2"/>Tres`),
			marks:      goodMarks,
			want:       ErrSequence,
			check: func(t *testing.T, err error) {
				var se *SequenceError
				if !errors.As(err, &se) || se.Got != 2 || se.Want != 1 {
					t.Errorf("error = %v, want SequenceError{2, 1}", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLoader(t, tt.descriptor, tt.marks, 1000)
			lesson, err := l.Load(context.Background(), "https://example.com/l1.json")
			if lesson != nil {
				t.Errorf("Load() returned a lesson alongside error %v", err)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Load() error = %v, want %v", err, tt.want)
			}
			tt.check(t, err)
		})
	}
}

func TestParseMarksReportsOversizedLine(t *testing.T) {
	old := maxMarkLine
	maxMarkLine = 64
	t.Cleanup(func() { maxMarkLine = old })

	data := strings.Join([]string{
		`{"time":0,"type":"ssml","value":"line0"}`,
		`skip me`,
		`{"time":10,"type":"ssml","value":"` + strings.Repeat("x", 100) + `"}`,
	}, "\n")

	_, err := parseMarks([]byte(data), "m")
	var pe *StreamParseError
	if !errors.As(err, &pe) {
		t.Fatalf("parseMarks() error = %v, want StreamParseError", err)
	}
	if pe.Line != 2 {
		t.Errorf("Line = %d, want 2", pe.Line)
	}
}

func TestLoadNetworkFailure(t *testing.T) {
	backend := audio.NewMockBackend()
	backend.DecodeErr = errors.New("decode failed")
	f := memFetcher{
		"https://example.com/l1.json":      descriptorJSON(threeLineSSML),
		"https://cdn.example.com/l1.marks": `{"time":0,"type":"ssml","value":"line0"}`,
	}
	lesson, err := NewLoader(f, backend, nil).Load(context.Background(), "https://example.com/l1.json")
	if err == nil || lesson != nil {
		t.Fatalf("Load() = %v, %v; want failure", lesson, err)
	}

	_, err = NewLoader(memFetcher{}, backend, nil).Load(context.Background(), "https://example.com/nope.json")
	if err == nil {
		t.Error("Load() with missing descriptor succeeded")
	}
}

func TestParseInputName(t *testing.T) {
	tests := []struct {
		name             string
		yes, no, silence *int
		isInput          bool
	}{
		{"yes2_no0_silence1", intp(2), intp(0), intp(1), true},
		{"no3", nil, intp(3), nil, true},
		{"silence-1", nil, nil, intp(-1), true},
		{"yes_no", nil, nil, nil, false},
		{"no2abc", nil, nil, nil, false},
		{"yes1_no2abc", intp(1), nil, nil, true},
		{"practice", nil, nil, nil, false},
		{"bookmark", nil, nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yes, no, silence := parseInputName(tt.name)
			if !eqTarget(yes, tt.yes) || !eqTarget(no, tt.no) || !eqTarget(silence, tt.silence) {
				t.Errorf("parseInputName(%q) = %v, %v, %v", tt.name, yes, no, silence)
			}
			if got := isInputName(tt.name); got != tt.isInput {
				t.Errorf("isInputName(%q) = %v, want %v", tt.name, got, tt.isInput)
			}
		})
	}
}

func TestLineContaining(t *testing.T) {
	lines := []Line{{From: 100, To: 1000}, {From: 1000, To: 3000}, {From: 3000, To: 4000}}
	tests := []struct {
		millis int64
		want   int
	}{
		{0, 0},
		{100, 0},
		{999, 0},
		{1000, 1},
		{1500, 1},
		{3999, 2},
		{9000, 2},
	}
	for _, tt := range tests {
		if got := lineContaining(tt.millis, lines); got != tt.want {
			t.Errorf("lineContaining(%d) = %d, want %d", tt.millis, got, tt.want)
		}
	}
}
