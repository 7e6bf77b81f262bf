package avatar

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-avatar/common"
	"github.com/Carmen-Shannon/oxy-avatar/engine/decoder"
	"github.com/rs/zerolog"
)

const (
	// DefaultWorkers is the default number of decode workers.
	DefaultWorkers = 2

	// DefaultQueueSize is the default number of decodes that may be queued or running at once.
	DefaultQueueSize = 32

	// DefaultIdleTimeout is the default idle timeout handed to the worker pool.
	DefaultIdleTimeout = time.Second
)

// DefaultExtensions are the file extensions eligible for animation detection.
var DefaultExtensions = []string{".webp", ".gif"}

// Outcome reports what Classify did for a key.
type Outcome int

const (
	// OutcomeIneligible means the key is remote, has an unsupported extension or is not a
	// readable regular file. It is treated as static without a cache entry.
	OutcomeIneligible Outcome = iota

	// OutcomeResolved means the key was already classified.
	OutcomeResolved

	// OutcomePending means a decode for the key is already in flight.
	OutcomePending

	// OutcomeDispatched means this call inserted Checking and started the decode.
	OutcomeDispatched

	// OutcomeDeferred means the worker queue was full and nothing was recorded.
	// The caller should classify again later.
	OutcomeDeferred
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeIneligible:
		return "ineligible"
	case OutcomeResolved:
		return "resolved"
	case OutcomePending:
		return "pending"
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// FrameUploader receives every frame of an animation once during warmup so the
// renderer can prepare it before playback starts.
type FrameUploader interface {
	// UploadFrame prepares one frame of an animated resource.
	//
	// Parameters:
	//   - key: the resource key
	//   - index: the frame index within the animation
	//   - frame: the frame to prepare
	//
	// Returns:
	//   - error: error if the frame could not be prepared
	UploadFrame(key string, index int, frame common.Frame) error
}

// Stats is a snapshot of the service counters.
type Stats struct {
	Checking   int
	Static     int
	Animated   int
	Warming    int
	Playing    int
	Dispatched int64
	Deferred   int64
	InFlight   int
}

// service is the implementation of the Service interface.
type service struct {
	cache     *cache
	scheduler *scheduler

	pool     worker.DynamicWorkerPool
	slots    chan struct{}
	inflight sync.WaitGroup
	taskID   atomic.Int64

	// pending holds dispatched keys no worker has claimed yet.
	pendingMu sync.Mutex
	pending   map[Key]struct{}

	decoder   decoder.Decoder
	converter decoder.Converter
	uploader  FrameUploader
	clock     Clock
	logger    zerolog.Logger

	extensions      map[string]struct{}
	firstFrameDelay time.Duration
	minFrameDelay   time.Duration

	workers     int
	queueSize   int
	idleTimeout time.Duration

	dispatched atomic.Int64
	deferred   atomic.Int64

	stopped  atomic.Bool
	stopOnce sync.Once
}

// Service owns the classification cache, the playback scheduler and the decode worker
// pool for a set of avatar instances. Instances created from the same Service share
// decoded animations and playback positions by Key.
type Service interface {
	// Classify normalizes source and starts background detection if it is needed.
	// It never blocks on decoding; the only I/O it performs is a stat of the file.
	//
	// Parameters:
	//   - source: a local path or URL
	//
	// Returns:
	//   - Key: the normalized key
	//   - Outcome: what the call did
	Classify(source string) (Key, Outcome)

	// Lookup returns the cached classification of key. A miss returns the zero Classification.
	//
	// Parameters:
	//   - key: the key to look up
	//
	// Returns:
	//   - Classification: the cached verdict
	Lookup(key Key) Classification

	// PlaybackState returns a copy of the playback state of key.
	//
	// Parameters:
	//   - key: the key to look up
	//
	// Returns:
	//   - PlaybackState: the state
	//   - bool: false if no state exists for key
	PlaybackState(key Key) (PlaybackState, bool)

	// NewInstance creates an avatar instance and classifies its source.
	//
	// Parameters:
	//   - source: the animatable resource, a local path or URL
	//   - static: the fallback image shown until (or instead of) the animation
	//   - size: the target render size
	//
	// Returns:
	//   - Instance: the new instance
	NewInstance(source string, static common.StaticSource, size common.Size) Instance

	// Stats returns a snapshot of the service counters.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats

	// Wait blocks until every dispatched decode has published its result.
	Wait()

	// Stop stops the worker pool. Decodes already running finish. Queued decodes are
	// dropped and their keys resolve to Static, so no key stays Checking after Stop.
	// Classify called after Stop reports OutcomeDeferred.
	Stop()
}

var _ Service = &service{}

// NewService creates a Service with options applied and starts its worker pool.
//
// Parameters:
//   - options: a variadic list of ServiceBuilderOption functions to configure the Service
//
// Returns:
//   - Service: a new Service instance
func NewService(options ...ServiceBuilderOption) Service {
	s := &service{
		cache:           newCache(),
		scheduler:       newScheduler(),
		pending:         make(map[Key]struct{}),
		clock:           SystemClock(),
		logger:          zerolog.Nop(),
		firstFrameDelay: decoder.DefaultFirstFrameDelay,
		minFrameDelay:   decoder.DefaultMinFrameDelay,
		workers:         DefaultWorkers,
		queueSize:       DefaultQueueSize,
		idleTimeout:     DefaultIdleTimeout,
	}
	WithExtensions(DefaultExtensions...)(s)

	for _, option := range options {
		option(s)
	}

	if s.decoder == nil {
		s.decoder = decoder.NewDecoder()
	}
	if s.converter == nil {
		s.converter = decoder.NewPNGConverter()
	}

	s.slots = make(chan struct{}, s.queueSize)
	s.pool = worker.NewDynamicWorkerPool(s.workers, s.queueSize, s.idleTimeout)
	s.logger = s.logger.With().Str("component", "avatar").Logger()

	return s
}

func (s *service) Classify(source string) (Key, Outcome) {
	key := NewKey(source)
	if !s.eligible(key) {
		return key, OutcomeIneligible
	}
	return key, s.classifyKey(key)
}

func (s *service) Lookup(key Key) Classification {
	return s.cache.get(key)
}

func (s *service) PlaybackState(key Key) (PlaybackState, bool) {
	return s.scheduler.state(key)
}

func (s *service) Stats() Stats {
	counts := s.cache.counts()
	warming, playing := s.scheduler.counts()
	return Stats{
		Checking:   counts[KindChecking],
		Static:     counts[KindStatic],
		Animated:   counts[KindAnimated],
		Warming:    warming,
		Playing:    playing,
		Dispatched: s.dispatched.Load(),
		Deferred:   s.deferred.Load(),
		InFlight:   len(s.slots),
	}
}

func (s *service) Wait() {
	s.inflight.Wait()
}

func (s *service) Stop() {
	s.stopOnce.Do(func() {
		s.pendingMu.Lock()
		s.stopped.Store(true)
		abandoned := s.pending
		s.pending = make(map[Key]struct{})
		s.pendingMu.Unlock()

		s.pool.Stop()
		s.pool.ClearTaskQueue()
		for key := range abandoned {
			s.cache.publish(key, Static())
			<-s.slots
			s.inflight.Done()
		}
		s.logger.Debug().
			Int("in_flight", len(s.slots)).
			Int("abandoned", len(abandoned)).
			Msg("avatar service stopped")
	})
}

// eligible reports whether key should go through animation detection.
func (s *service) eligible(key Key) bool {
	if key == "" || key.IsRemote() {
		return false
	}
	if _, ok := s.extensions[key.Ext()]; !ok {
		return false
	}
	info, err := os.Stat(string(key))
	return err == nil && info.Mode().IsRegular()
}

// classifyKey performs the check-and-set for an eligible key.
// A queue slot is taken before the cache is touched so a full queue leaves no Checking
// entry behind.
func (s *service) classifyKey(key Key) Outcome {
	if s.stopped.Load() {
		return OutcomeDeferred
	}
	if cls := s.cache.get(key); cls.Kind != KindUnknown {
		return outcomeOf(cls)
	}

	select {
	case s.slots <- struct{}{}:
	default:
		s.deferred.Add(1)
		s.logger.Debug().Str("key", key.String()).Msg("decode queue full, deferring")
		return OutcomeDeferred
	}

	existing, owned := s.cache.reserve(key)
	if !owned {
		<-s.slots
		return outcomeOf(existing)
	}

	if !s.dispatch(key) {
		return OutcomeDeferred
	}
	return OutcomeDispatched
}

// dispatch submits the decode task for key. The caller holds a queue slot, which
// guarantees SubmitTask finds room in the pool's queue. If Stop won the race the key
// resolves to Static, the slot is returned and dispatch reports false.
func (s *service) dispatch(key Key) bool {
	s.pendingMu.Lock()
	if s.stopped.Load() {
		s.pendingMu.Unlock()
		s.cache.publish(key, Static())
		<-s.slots
		return false
	}
	s.pending[key] = struct{}{}
	s.inflight.Add(1)
	s.pendingMu.Unlock()

	s.dispatched.Add(1)
	s.logger.Debug().Str("key", key.String()).Msg("starting background animation detection")

	s.pool.SubmitTask(worker.Task{
		ID:      int(s.taskID.Add(1)),
		Payload: key,
		Do: func() (any, error) {
			if !s.claim(key) {
				// Stop already resolved this key.
				return nil, nil
			}
			defer s.inflight.Done()
			defer func() { <-s.slots }()
			return s.runDecode(key), nil
		},
	})
	return true
}

// claim removes key from the pending set. It reports false once Stop has taken it.
func (s *service) claim(key Key) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if _, ok := s.pending[key]; !ok {
		return false
	}
	delete(s.pending, key)
	return true
}

func outcomeOf(cls Classification) Outcome {
	switch cls.Kind {
	case KindChecking:
		return OutcomePending
	case KindStatic, KindAnimated:
		return OutcomeResolved
	default:
		return OutcomeIneligible
	}
}
