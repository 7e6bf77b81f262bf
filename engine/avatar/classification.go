package avatar

import "fmt"

// Kind tags the variant held by a Classification.
type Kind int

const (
	// KindUnknown is the zero Kind. A Classification of this kind is a cache miss.
	KindUnknown Kind = iota

	// KindChecking means a decode for the key is in flight.
	KindChecking

	// KindStatic means the resource is not animated or could not be decoded. Terminal.
	KindStatic

	// KindAnimated means the resource decoded to two or more frames. Terminal.
	KindAnimated
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindChecking:
		return "checking"
	case KindStatic:
		return "static"
	case KindAnimated:
		return "animated"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Classification is the cached verdict for one Key.
// Animation is non-nil if and only if Kind is KindAnimated.
type Classification struct {
	Kind      Kind
	Animation *AnimationData
}

// Checking returns the in-flight classification.
func Checking() Classification {
	return Classification{Kind: KindChecking}
}

// Static returns the static classification.
func Static() Classification {
	return Classification{Kind: KindStatic}
}

// Animated returns an animated classification carrying data.
// It panics if data is nil.
func Animated(data *AnimationData) Classification {
	if data == nil {
		panic("animated classification requires animation data")
	}
	return Classification{Kind: KindAnimated, Animation: data}
}

// IsResolved reports whether the classification is terminal.
func (c Classification) IsResolved() bool {
	return c.Kind == KindStatic || c.Kind == KindAnimated
}
