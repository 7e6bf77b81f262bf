package avatar

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-avatar/common"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestFiveFrameScenario(t *testing.T) {
	dir := t.TempDir()
	path := writeAnimatedWebP(t, dir, "avatar.webp", 0, 100, 150, 50, 120)

	clock := NewManualClock(epoch)
	uploader := &recordingUploader{}
	svc := newTestService(t, WithClock(clock), WithFrameUploader(uploader))

	inst := svc.NewInstance(path, common.NewStaticSource(path), common.Square(64))
	svc.Wait()

	cls := svc.Lookup(inst.Key())
	if cls.Kind != KindAnimated {
		t.Fatalf("classification = %v, want animated", cls.Kind)
	}
	want := []time.Duration{ms(100), ms(100), ms(150), ms(50), ms(120)}
	if got := cls.Animation.Delays(); !slices.Equal(got, want) {
		t.Fatalf("delays = %v, want %v", got, want)
	}

	for i := 0; i < 5; i++ {
		sel := inst.Frame()
		if sel.Kind != SelectionAnimated || sel.Phase != PhaseWarmup {
			t.Fatalf("warmup query %d: %+v", i, sel)
		}
		if sel.Index != 0 {
			t.Fatalf("warmup query %d displayed frame %d, want 0", i, sel.Index)
		}
		clock.Advance(ms(1))
	}
	if got := uploader.uploaded(); !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("uploaded = %v, want every frame once", got)
	}

	st, ok := svc.PlaybackState(inst.Key())
	if !ok || !st.WarmedUp {
		t.Fatalf("not playing after warmup: %+v", st)
	}

	if sel := inst.Frame(); sel.Phase != PhasePlaying || sel.Index != 0 {
		t.Fatalf("first playing query = %+v", sel)
	}

	// elapsed is measured from the warmup-completing query, one ms before now
	clock.Advance(ms(98))
	if sel := inst.Frame(); sel.Index != 0 {
		t.Fatalf("advanced before 100ms: %d", sel.Index)
	}
	clock.Advance(ms(1))
	expected := []int{1, 2, 3, 4, 0, 1}
	for i, w := range expected {
		sel := inst.Frame()
		if sel.Index != w {
			t.Fatalf("step %d: frame = %d, want %d", i, sel.Index, w)
		}
		if !slices.Equal(sel.Frame.Data, cls.Animation.Frame(w).Data) {
			t.Fatalf("step %d: selection frame does not match index", i)
		}
		clock.Advance(cls.Animation.Delay(w))
	}
	if got := len(uploader.uploaded()); got != 5 {
		t.Fatalf("uploads during playback: %d", got)
	}
}

func TestInstancesShareState(t *testing.T) {
	dir := t.TempDir()
	path := writeAnimatedWebP(t, dir, "shared.webp", 30, 30, 30)

	svc := newTestService(t, WithClock(NewManualClock(epoch)))
	a := svc.NewInstance(path, common.NewStaticSource(path), common.Square(32))
	b := svc.NewInstance(" "+path+" ", common.NewStaticSource(path), common.Square(96))
	svc.Wait()

	if a.Key() != b.Key() {
		t.Fatalf("keys differ: %q %q", a.Key(), b.Key())
	}
	if a.ID() == b.ID() {
		t.Fatal("instances share an ID")
	}
	a.Frame()
	b.Frame()
	st, _ := svc.PlaybackState(a.Key())
	if st.WarmupCursor != 2 {
		t.Fatalf("cursor = %d, want 2 after one query from each instance", st.WarmupCursor)
	}
	if b.Frame().Size != common.Square(96) {
		t.Fatal("selection does not carry the instance size")
	}
}

func TestSingleFrameIsStatic(t *testing.T) {
	dir := t.TempDir()
	still := writeStillWebP(t, dir, "still.webp")
	single := writeAnimatedWebP(t, dir, "single.webp", 80)

	svc := newTestService(t)
	for _, path := range []string{still, single} {
		inst := svc.NewInstance(path, common.NewStaticSource(path), common.Square(32))
		svc.Wait()

		if cls := svc.Lookup(inst.Key()); cls.Kind != KindStatic || cls.Animation != nil {
			t.Fatalf("%s: classification = %+v, want static", filepath.Base(path), cls)
		}
		if _, ok := svc.PlaybackState(inst.Key()); ok {
			t.Fatalf("%s: playback state created for static resource", filepath.Base(path))
		}
		if sel := inst.Frame(); sel.Kind != SelectionStatic || sel.Static.Path != path {
			t.Fatalf("%s: selection = %+v", filepath.Base(path), sel)
		}
	}
}

func TestCorruptFileIsStatic(t *testing.T) {
	dir := t.TempDir()
	corrupt := writeFile(t, dir, "broken.webp", []byte("RIFF\x20\x00\x00\x00WEBPVP8X\x0a\x00\x00\x00garbage-bytes-here"))
	notImage := writeFile(t, dir, "text.gif", []byte("hello"))

	dec := newCountingDecoder()
	svc := newTestService(t, WithDecoder(dec))
	for _, path := range []string{corrupt, notImage} {
		key, outcome := svc.Classify(path)
		if outcome != OutcomeDispatched {
			t.Fatalf("%s: outcome = %v", filepath.Base(path), outcome)
		}
		svc.Wait()
		if cls := svc.Lookup(key); cls.Kind != KindStatic {
			t.Fatalf("%s: classification = %v, want static", filepath.Base(path), cls.Kind)
		}
		if _, outcome := svc.Classify(path); outcome != OutcomeResolved {
			t.Fatalf("%s: second classify = %v, want resolved", filepath.Base(path), outcome)
		}
	}
	svc.Wait()
	if got := dec.calls.Load(); got != 2 {
		t.Fatalf("decode attempts = %d, want one per file", got)
	}
}

func TestDecoderPanicIsStatic(t *testing.T) {
	path := writeAnimatedWebP(t, t.TempDir(), "panic.webp", 10, 10)
	svc := newTestService(t, WithDecoder(panicDecoder{}))

	inst := svc.NewInstance(path, common.NewStaticSource(path), common.Square(32))
	svc.Wait()
	if cls := svc.Lookup(inst.Key()); cls.Kind != KindStatic {
		t.Fatalf("classification = %v, want static", cls.Kind)
	}
	if sel := inst.Frame(); sel.Kind != SelectionStatic {
		t.Fatalf("selection = %v, want static", sel.Kind)
	}
}

func TestConcurrentInstancesDispatchOnce(t *testing.T) {
	path := writeAnimatedWebP(t, t.TempDir(), "popular.webp", 20, 20, 20)
	dec := newCountingDecoder()
	svc := newTestService(t, WithDecoder(dec), WithWorkers(4))

	const n = 64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			svc.NewInstance(path, common.NewStaticSource(path), common.Square(32))
		}()
	}
	close(start)
	wg.Wait()
	svc.Wait()

	if got := dec.calls.Load(); got != 1 {
		t.Fatalf("decodes = %d, want 1", got)
	}
	if got := svc.Stats().Dispatched; got != 1 {
		t.Fatalf("dispatched = %d, want 1", got)
	}
	if cls := svc.Lookup(NewKey(path)); cls.Kind != KindAnimated {
		t.Fatalf("classification = %v", cls.Kind)
	}
}

func TestIneligibleResourcesNeverDispatch(t *testing.T) {
	dir := t.TempDir()
	png := writeFile(t, dir, "avatar.png", []byte("\x89PNG\r\n\x1a\n"))
	if err := os.Mkdir(filepath.Join(dir, "folder.webp"), 0o755); err != nil {
		t.Fatal(err)
	}

	svc := newTestService(t)
	sources := []string{
		png,
		"https://cdn.example.com/avatar.webp",
		filepath.Join(dir, "missing.webp"),
		filepath.Join(dir, "folder.webp"),
		"",
	}
	for _, src := range sources {
		for i := 0; i < 3; i++ {
			key, outcome := svc.Classify(src)
			if outcome != OutcomeIneligible {
				t.Fatalf("Classify(%q) = %v, want ineligible", src, outcome)
			}
			if cls := svc.Lookup(key); cls.Kind != KindUnknown {
				t.Fatalf("Classify(%q) created a cache entry", src)
			}
		}
		inst := svc.NewInstance(src, common.NewStaticSource(src), common.Square(16))
		if sel := inst.Frame(); sel.Kind != SelectionStatic {
			t.Fatalf("%q selected %v", src, sel.Kind)
		}
	}
	if got := svc.Stats().Dispatched; got != 0 {
		t.Fatalf("dispatched = %d, want 0", got)
	}
}

func TestStaticResultDispatchesOnce(t *testing.T) {
	path := writeStillWebP(t, t.TempDir(), "still.webp")
	svc := newTestService(t)

	if _, outcome := svc.Classify(path); outcome != OutcomeDispatched {
		t.Fatalf("first classify = %v", outcome)
	}
	svc.Wait()
	for i := 0; i < 10; i++ {
		if _, outcome := svc.Classify(path); outcome != OutcomeResolved {
			t.Fatalf("classify %d = %v, want resolved", i, outcome)
		}
	}
	if got := svc.Stats().Dispatched; got != 1 {
		t.Fatalf("dispatched = %d, want 1", got)
	}
}

func TestCheckingShowsStatic(t *testing.T) {
	path := writeAnimatedWebP(t, t.TempDir(), "slow.webp", 10, 10)
	conv := newGatedConverter()
	svc := newTestService(t, WithConverter(conv))

	inst := svc.NewInstance(path, common.NewStaticSource(path), common.Square(32))
	if cls := svc.Lookup(inst.Key()); cls.Kind != KindChecking {
		t.Fatalf("classification while decoding = %v, want checking", cls.Kind)
	}
	if _, outcome := svc.Classify(path); outcome != OutcomePending {
		t.Fatalf("classify while decoding = %v, want pending", outcome)
	}
	if sel := inst.Frame(); sel.Kind != SelectionStatic {
		t.Fatalf("selection while decoding = %v", sel.Kind)
	}

	conv.release()
	svc.Wait()
	if sel := inst.Frame(); sel.Kind != SelectionAnimated {
		t.Fatalf("selection after decode = %v", sel.Kind)
	}
}

func TestDroppedInstanceCompletesDecode(t *testing.T) {
	path := writeAnimatedWebP(t, t.TempDir(), "dropped.webp", 40, 40, 40)
	conv := newGatedConverter()
	svc := newTestService(t, WithConverter(conv))

	inst := svc.NewInstance(path, common.NewStaticSource(path), common.Square(32))
	key := inst.Key()
	inst = nil
	runtime.GC()

	conv.release()
	svc.Wait()

	cls := svc.Lookup(key)
	if cls.Kind != KindAnimated || cls.Animation.Len() != 3 {
		t.Fatalf("classification = %+v", cls)
	}
	if _, ok := svc.PlaybackState(key); !ok {
		t.Fatal("playback state not seeded")
	}
	_ = inst
}

func TestConversionFailureDropsFrameAndDelay(t *testing.T) {
	path := writeAnimatedWebP(t, t.TempDir(), "lossy.webp", 0, 100, 150, 50, 120)
	svc := newTestService(t, WithConverter(newFlakyConverter(1)))

	key, _ := svc.Classify(path)
	svc.Wait()

	cls := svc.Lookup(key)
	if cls.Kind != KindAnimated {
		t.Fatalf("classification = %v", cls.Kind)
	}
	want := []time.Duration{ms(100), ms(150), ms(50), ms(120)}
	if got := cls.Animation.Delays(); !slices.Equal(got, want) {
		t.Fatalf("delays = %v, want %v", got, want)
	}
}

func TestConversionFailuresLeavingOneFrameIsStatic(t *testing.T) {
	path := writeAnimatedWebP(t, t.TempDir(), "mostly-broken.webp", 10, 10, 10)
	svc := newTestService(t, WithConverter(newFlakyConverter(0, 2)))

	key, _ := svc.Classify(path)
	svc.Wait()

	if cls := svc.Lookup(key); cls.Kind != KindStatic {
		t.Fatalf("classification = %v, want static", cls.Kind)
	}
	if _, ok := svc.PlaybackState(key); ok {
		t.Fatal("playback state created for static resource")
	}
}

func TestBackpressureDefersAndRetries(t *testing.T) {
	dir := t.TempDir()
	first := writeAnimatedWebP(t, dir, "first.webp", 10, 10)
	second := writeAnimatedWebP(t, dir, "second.webp", 10, 10)

	conv := newGatedConverter()
	svc := newTestService(t, WithConverter(conv), WithWorkers(1), WithQueueSize(1))

	a := svc.NewInstance(first, common.NewStaticSource(first), common.Square(32))
	b := svc.NewInstance(second, common.NewStaticSource(second), common.Square(32))

	if cls := svc.Lookup(b.Key()); cls.Kind != KindUnknown {
		t.Fatalf("deferred key has cache entry %v", cls.Kind)
	}
	if sel := b.Frame(); sel.Kind != SelectionStatic {
		t.Fatalf("deferred instance selected %v", sel.Kind)
	}
	stats := svc.Stats()
	if stats.Deferred != 2 || stats.Dispatched != 1 || stats.InFlight != 1 {
		t.Fatalf("stats while full = %+v", stats)
	}

	conv.release()
	svc.Wait()

	b.Frame()
	svc.Wait()
	for _, inst := range []Instance{a, b} {
		if cls := svc.Lookup(inst.Key()); cls.Kind != KindAnimated {
			t.Fatalf("%s: classification = %v", inst.Key(), cls.Kind)
		}
	}
	if got := svc.Stats().Dispatched; got != 2 {
		t.Fatalf("dispatched = %d, want 2", got)
	}
}

func TestUploaderErrorsDoNotSurface(t *testing.T) {
	path := writeAnimatedWebP(t, t.TempDir(), "upload.webp", 10, 10)
	uploader := &recordingUploader{err: errors.New("device lost")}
	svc := newTestService(t, WithFrameUploader(uploader))

	inst := svc.NewInstance(path, common.NewStaticSource(path), common.Square(32))
	svc.Wait()
	for i := 0; i < 3; i++ {
		if sel := inst.Frame(); sel.Kind != SelectionAnimated {
			t.Fatalf("query %d: %v", i, sel.Kind)
		}
	}
	if got := uploader.uploaded(); !slices.Equal(got, []int{0, 1}) {
		t.Fatalf("uploaded = %v", got)
	}
}

func TestExtensionsOption(t *testing.T) {
	path := writeAnimatedWebP(t, t.TempDir(), "avatar.webp", 10, 10)
	svc := newTestService(t, WithExtensions("GIF"))

	if _, outcome := svc.Classify(path); outcome != OutcomeIneligible {
		t.Fatalf("webp with gif-only extensions = %v", outcome)
	}
}

func TestStopDefersClassification(t *testing.T) {
	path := writeAnimatedWebP(t, t.TempDir(), "late.webp", 10, 10)
	svc := NewService()
	svc.Stop()
	svc.Stop()

	if _, outcome := svc.Classify(path); outcome != OutcomeDeferred {
		t.Fatalf("classify after stop = %v, want deferred", outcome)
	}
}

func TestStopResolvesQueuedDecodes(t *testing.T) {
	dir := t.TempDir()
	conv := newGatedConverter()
	svc := NewService(WithConverter(conv), WithWorkers(1), WithQueueSize(4))

	running, _ := svc.Classify(writeAnimatedWebP(t, dir, "running.webp", 10, 10))
	select {
	case <-conv.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first decode never started")
	}

	var queued []Key
	for _, name := range []string{"queued1.webp", "queued2.webp"} {
		key, outcome := svc.Classify(writeAnimatedWebP(t, dir, name, 10, 10))
		if outcome != OutcomeDispatched {
			t.Fatalf("classify %s = %v, want dispatched", name, outcome)
		}
		queued = append(queued, key)
	}

	svc.Stop()
	for _, key := range queued {
		if cls := svc.Lookup(key); cls.Kind != KindStatic {
			t.Errorf("queued %s = %v after stop, want static", key, cls.Kind)
		}
	}
	if st := svc.Stats(); st.InFlight != 1 || st.Checking != 1 {
		t.Fatalf("after stop: in flight %d, checking %d, want 1/1", st.InFlight, st.Checking)
	}

	conv.release()
	svc.Wait()
	if cls := svc.Lookup(running); cls.Kind != KindAnimated {
		t.Fatalf("running decode = %v, want animated", cls.Kind)
	}
	if st := svc.Stats(); st.InFlight != 0 || st.Checking != 0 {
		t.Fatalf("after wait: in flight %d, checking %d", st.InFlight, st.Checking)
	}
}

func TestSetSize(t *testing.T) {
	svc := newTestService(t)
	inst := svc.NewInstance("https://example.com/a.webp", common.NewStaticSource("https://example.com/a.webp"), common.Square(32))
	inst.SetSize(common.Size{Width: 48, Height: 24})
	if got := inst.Frame().Size; got != (common.Size{Width: 48, Height: 24}) {
		t.Fatalf("size = %+v", got)
	}
}
