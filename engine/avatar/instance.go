package avatar

import (
	"github.com/Carmen-Shannon/oxy-avatar/common"
	"github.com/google/uuid"
)

// instance is the implementation of the Instance interface.
type instance struct {
	id  uuid.UUID
	svc *service

	key    Key
	static common.StaticSource
	size   common.Size

	retry bool
}

// Instance is one mounted avatar widget. It holds its key, fallback image and size; the
// decoded animation and playback position belong to the Service and are shared by key.
// An Instance is driven by a single render goroutine and is not safe for concurrent use.
type Instance interface {
	// ID returns the unique identifier of the instance.
	ID() uuid.UUID

	// Key returns the normalized resource key.
	Key() Key

	// Static returns the fallback image source.
	Static() common.StaticSource

	// Size returns the target render size.
	Size() common.Size

	// SetSize changes the target render size.
	//
	// Parameters:
	//   - size: the new size
	SetSize(size common.Size)

	// Frame answers the per-render query: what to draw now.
	// It never blocks and never fails; anything other than a ready animation selects the
	// static fallback. Animated keys advance their shared playback state by one step.
	//
	// Returns:
	//   - Selection: the static fallback or the current animation frame
	Frame() Selection
}

var _ Instance = &instance{}

func (s *service) NewInstance(source string, static common.StaticSource, size common.Size) Instance {
	key, outcome := s.Classify(source)
	inst := &instance{
		id:     uuid.New(),
		svc:    s,
		key:    key,
		static: static,
		size:   size,
		retry:  outcome == OutcomeDeferred,
	}
	s.logger.Trace().
		Str("instance", inst.id.String()).
		Str("key", key.String()).
		Stringer("outcome", outcome).
		Msg("avatar instance created")
	return inst
}

func (i *instance) ID() uuid.UUID {
	return i.id
}

func (i *instance) Key() Key {
	return i.key
}

func (i *instance) Static() common.StaticSource {
	return i.static
}

func (i *instance) Size() common.Size {
	return i.size
}

func (i *instance) SetSize(size common.Size) {
	i.size = size
}

func (i *instance) Frame() Selection {
	if i.retry {
		i.retry = i.svc.classifyKey(i.key) == OutcomeDeferred
	}

	cls := i.svc.cache.get(i.key)
	switch cls.Kind {
	case KindAnimated:
		return i.animated(cls.Animation)
	case KindUnknown, KindChecking, KindStatic:
		return i.staticSelection()
	default:
		return i.staticSelection()
	}
}

// animated advances the shared playback state and selects the frame to display.
// During warmup the displayed frame stays on CurrentFrame while the warmup frame goes to
// the uploader.
func (i *instance) animated(data *AnimationData) Selection {
	tick, ok := i.svc.scheduler.advance(i.key, data.delays, i.svc.clock.Now())
	if !ok {
		return i.staticSelection()
	}

	if tick.Warm >= 0 && i.svc.uploader != nil {
		if err := i.svc.uploader.UploadFrame(i.key.String(), tick.Warm, data.Frame(tick.Warm)); err != nil {
			i.svc.logger.Debug().Err(err).Str("key", i.key.String()).Int("frame", tick.Warm).Msg("frame upload failed")
		}
	}
	if tick.WarmupDone {
		i.svc.logger.Debug().Str("key", i.key.String()).Int("frames", data.Len()).Msg("warmup complete")
	}

	return Selection{
		Kind:   SelectionAnimated,
		Key:    i.key,
		Static: i.static,
		Size:   i.size,
		Frame:  data.Frame(tick.Frame),
		Index:  tick.Frame,
		Phase:  tick.Phase,
	}
}

func (i *instance) staticSelection() Selection {
	return Selection{
		Kind:   SelectionStatic,
		Key:    i.key,
		Static: i.static,
		Size:   i.size,
		Index:  -1,
	}
}
