package watcher

// DefaultBufferSize is the read buffer used when Options.BufferSize is unset.
const DefaultBufferSize = 4096

// MinBufferSize holds one frame with the longest possible name.
const MinBufferSize = headerSize + nameMax + 1

// Options configures watch sessions.
type Options struct {
	// BufferSize is the size of the buffer one read of the notification
	// source fills. Smaller values are raised to MinBufferSize.
	BufferSize int
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.BufferSize == 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.BufferSize < MinBufferSize {
		o.BufferSize = MinBufferSize
	}
}
