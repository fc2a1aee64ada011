package pipeline

import (
	"bytes"
	"compress/zlib"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ece252-project/stripassemble/internal/arena"
	"github.com/ece252-project/stripassemble/internal/codec"
	"github.com/ece252-project/stripassemble/internal/fetch"
)

// constantStripPNG builds a tiny valid PNG whose inflated raster is entirely
// the constant byte k, matching §8 property 5 ("assembly completeness").
func constantStripPNG(t *testing.T, k byte) []byte {
	t.Helper()
	raster := bytes.Repeat([]byte{k}, arena.SlotSize)

	var out bytes.Buffer
	w := zlib.NewWriter(&out)
	if _, err := w.Write(raster); err != nil {
		t.Fatalf("deflating test strip: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zlib writer: %v", err)
	}

	png := codec.New(arena.StripWidth, arena.StripRows, 8, codec.ColorTruecolorAlpha)
	png.IDAT = out.Bytes()
	return png.Write()
}

// mockFetcher hands back a deterministic, per-sequence strip image. It can
// be configured to "fail" a specific set of sequence numbers to exercise the
// producer's failure-handling path.
type mockFetcher struct {
	mu       sync.Mutex
	requests []int
	fail     map[int]bool
}

func newMockFetcher(fail ...int) *mockFetcher {
	m := &mockFetcher{fail: map[int]bool{}}
	for _, f := range fail {
		m.fail[f] = true
	}
	return m
}

func (m *mockFetcher) Fetch(_ context.Context, _ int, partNum int) (fetch.Fragment, error) {
	m.mu.Lock()
	m.requests = append(m.requests, partNum)
	m.mu.Unlock()

	if m.fail[partNum] {
		return fetch.Fragment{}, codec.NewError(codec.Network, "injected failure for part %d", partNum)
	}
	return fetch.Fragment{Sequence: partNum, Body: nil}, nil
}

func (m *mockFetcher) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// fill in the body lazily since it needs `t` for building the PNG; wrap.
type lazyBodyFetcher struct {
	*mockFetcher
	t *testing.T
}

func (m *lazyBodyFetcher) Fetch(ctx context.Context, imageNum, partNum int) (fetch.Fragment, error) {
	frag, err := m.mockFetcher.Fetch(ctx, imageNum, partNum)
	if err != nil {
		return frag, err
	}
	frag.Body = constantStripPNG(m.t, byte(partNum))
	return frag, nil
}

func TestRunConvergesCountersOnSuccess(t *testing.T) {
	mock := &lazyBodyFetcher{mockFetcher: newMockFetcher(), t: t}
	cfg := Config{BufferSize: 4, Producers: 4, Consumers: 4, ImageNum: 1, TotalFragments: 20}
	co := New(cfg, mock)

	report, err := co.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Produced != 20 || report.Consumed != 20 || report.NextSequence != 20 {
		t.Fatalf("Report = %+v, want Produced=Consumed=NextSequence=20", report)
	}
	if mock.requestCount() != 20 {
		t.Fatalf("requests = %d, want 20", mock.requestCount())
	}
}

func TestRunAssemblesExpectedConstantPerSlot(t *testing.T) {
	mock := &lazyBodyFetcher{mockFetcher: newMockFetcher(), t: t}
	cfg := Config{BufferSize: 3, Producers: 2, Consumers: 2, ImageNum: 1, TotalFragments: 10}
	co := New(cfg, mock)

	if _, err := co.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ar := co.Arena()
	for k := 0; k < 10; k++ {
		slot := ar.Slot(k)
		want := bytes.Repeat([]byte{byte(k)}, arena.SlotSize)
		if !bytes.Equal(slot, want) {
			t.Errorf("slot %d mismatched expected constant-fill pattern", k)
		}
	}
}

func TestRunLeavesFailedSlotZeroed(t *testing.T) {
	mock := &lazyBodyFetcher{mockFetcher: newMockFetcher(3), t: t}
	cfg := Config{BufferSize: 2, Producers: 3, Consumers: 2, ImageNum: 1, TotalFragments: 10}
	co := New(cfg, mock)

	report, err := co.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Consumed != 10 {
		t.Fatalf("Consumed = %d, want 10 (failed fetch still counted via zero-fill policy)", report.Consumed)
	}
	if len(report.FragmentsFailed) != 1 || report.FragmentsFailed[0] != 3 {
		t.Fatalf("FragmentsFailed = %v, want [3]", report.FragmentsFailed)
	}

	ar := co.Arena()
	zero := make([]byte, arena.SlotSize)
	if !bytes.Equal(ar.Slot(3), zero) {
		t.Error("expected slot 3 to remain zero-filled after its fetch failure")
	}
}

func TestRunHonorsConsumerDelayWallClock(t *testing.T) {
	mock := &lazyBodyFetcher{mockFetcher: newMockFetcher(), t: t}
	cfg := Config{
		BufferSize:     2,
		Producers:      2,
		Consumers:      2,
		ConsumerDelay:  20 * time.Millisecond,
		ImageNum:       1,
		TotalFragments: 10,
	}
	co := New(cfg, mock)

	start := time.Now()
	if _, err := co.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(start)

	// 10 fragments over 2 consumers, 20ms delay each: at least 5 * 20ms.
	minExpected := 5 * 20 * time.Millisecond
	if elapsed < minExpected {
		t.Errorf("elapsed = %v, want at least %v", elapsed, minExpected)
	}
}

func TestConfigValidateRejectsOutOfRangeFields(t *testing.T) {
	cases := []Config{
		{BufferSize: 0, Producers: 1, Consumers: 1, ImageNum: 1},
		{BufferSize: 51, Producers: 1, Consumers: 1, ImageNum: 1},
		{BufferSize: 1, Producers: 0, Consumers: 1, ImageNum: 1},
		{BufferSize: 1, Producers: 21, Consumers: 1, ImageNum: 1},
		{BufferSize: 1, Producers: 1, Consumers: 0, ImageNum: 1},
		{BufferSize: 1, Producers: 1, Consumers: 1, ImageNum: 0},
		{BufferSize: 1, Producers: 1, Consumers: 1, ImageNum: 4},
		{BufferSize: 1, Producers: 1, Consumers: 1, ImageNum: 1, ConsumerDelay: -1},
		{BufferSize: 1, Producers: 1, Consumers: 1, ImageNum: 1, ConsumerDelay: 1001 * time.Millisecond},
	}
	for _, c := range cases {
		if err := c.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want an error", c)
		}
	}
}

func TestConfigValidateAcceptsBoundaryValues(t *testing.T) {
	c := Config{BufferSize: 50, Producers: 20, Consumers: 20, ImageNum: 3, ConsumerDelay: 1000 * time.Millisecond}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate(%+v) = %v, want nil", c, err)
	}
}
