package log

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

var (
	sampleWork     = uint64(3)
	sampleHandle   = []byte("123")
	sampleAverages = []uint16{80, 0, 100}
	sampleDuration = time.Second
	sampleTime     = time.Unix(12345678, 0)

	errSample = errors.New("some error")
)

func doLogs() {
	Infof("aggregated %d scores for work %x", sampleWork, sampleHandle)
	Debugw("score submitted", "workId", sampleWork, "reviewer", "0xabc123")
	Errorf("cannot commit ledger transaction: %v", errSample)
	Warnw("various types",
		"averages", sampleAverages,
		"duration", sampleDuration,
		"time", sampleTime,
	)
	Error(errSample)
}

func TestCheckInvalidChars(t *testing.T) {
	t.Cleanup(func() { panicOnInvalidChars = false })

	v := []byte{'h', 'e', 'l', 'l', 'o', 0xff, 'w', 'o', 'r', 'l', 'd'}
	panicOnInvalidChars = false
	Init("debug", "stderr", nil)
	Debugf("%s", v)
	// should not panic since the flag is false. if it panics, test will fail

	// now enable panic and try again: should recover() and never reach t.Errorf()
	panicOnInvalidChars = true
	Init("debug", "stderr", nil)
	defer func() { recover() }()
	Debugf("%s", v)
	t.Errorf("Debugf(%s) should have panicked because of invalid char", v)
}

func TestErrorOutput(t *testing.T) {
	c := qt.New(t)
	t.Cleanup(func() { Init("error", "stderr", nil) })

	var out, errOut bytes.Buffer
	logTestWriter = &out
	Init("debug", logTestWriterName, &errOut)
	c.Assert(Level(), qt.Equals, LogLevelDebug)

	Infow("work added", "workId", 1)
	Warnw("slow backend", "elapsed", time.Millisecond)

	c.Assert(out.String(), qt.Contains, "work added")
	c.Assert(out.String(), qt.Contains, "slow backend")
	c.Assert(errOut.String(), qt.Not(qt.Contains), "work added")
	c.Assert(errOut.String(), qt.Contains, "slow backend")
}

func BenchmarkLogger(b *testing.B) {
	logTestWriter = io.Discard // to not grow a buffer
	Init("debug", logTestWriterName, nil)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		doLogs()
	}
}
