package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

type recorder struct {
	messages []string
	counts   [][2]int
}

func (r *recorder) OnProgress(m string)             { r.messages = append(r.messages, m) }
func (r *recorder) OnProgressCount(done, total int) { r.counts = append(r.counts, [2]int{done, total}) }

func TestMulti_FansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, b, Nop{}}
	m.OnProgress("hello")
	m.OnProgressCount(1, 2)

	for _, r := range []*recorder{a, b} {
		if len(r.messages) != 1 || r.messages[0] != "hello" {
			t.Fatalf("messages: %#v", r.messages)
		}
		if len(r.counts) != 1 || r.counts[0] != [2]int{1, 2} {
			t.Fatalf("counts: %#v", r.counts)
		}
	}
}

func TestLog_Steps(t *testing.T) {
	var buf bytes.Buffer
	l := &Log{Log: slog.New(slog.NewTextHandler(&buf, nil)), Step: 50}
	for i := 1; i <= 10; i++ {
		l.OnProgressCount(i, 10)
	}
	// 50% and 100%
	if n := strings.Count(buf.String(), "msg=progress"); n != 2 {
		t.Fatalf("want 2 progress records, got %d:\n%s", n, buf.String())
	}
}

func TestBar_Draws(t *testing.T) {
	var buf bytes.Buffer
	b := NewBar(&buf, "checking")
	b.OnProgress("ignored before first count")
	b.OnProgressCount(1, 3)
	b.OnProgress("1.2.3.4:80 is working")
	b.OnProgressCount(3, 3)
	b.Finish()
	if buf.Len() == 0 {
		t.Fatalf("bar wrote nothing")
	}
}
