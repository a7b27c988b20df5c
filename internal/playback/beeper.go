package playback

import (
	"time"

	"github.com/voxdesk/voxdesk/internal/logger"
)

// GainSink is the output whose volume the beeper pulses. Both
// *oto.Player and test fakes satisfy it.
type GainSink interface {
	SetVolume(v float64)
}

// BeeperOption configures a Beeper.
type BeeperOption func(*Beeper)

// WithTick sets the duty-cycle tick length.
func WithTick(d time.Duration) BeeperOption {
	return func(b *Beeper) { b.tick = d }
}

// WithPeriod sets the number of ticks per on/off cycle. The sink is
// audible for the first tick of each period and silent for the rest.
func WithPeriod(n int) BeeperOption {
	return func(b *Beeper) { b.period = n }
}

// Beeper produces the periodic "request in progress" cue: one audible
// tick followed by four silent ones, looping until the owner signals.
//
// The beeper is scoped to a single request, not to the generation
// registry — the owning request sends the stop signal exactly once,
// when its network fetch settles, and the beeper exits without
// touching anything but its own sink.
type Beeper struct {
	tick   time.Duration
	period int
	log    *logger.Logger
}

// NewBeeper creates a beeper with the reference duty cycle
// (200 ms tick, 1-on / 4-off).
func NewBeeper(log *logger.Logger, opts ...BeeperOption) *Beeper {
	b := &Beeper{
		tick:   200 * time.Millisecond,
		period: 5,
		log:    log,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run pulses the sink between volume and zero until stop is closed.
// Blocks; run it on its own goroutine. The stop channel is the
// one-shot rendezvous: closed exactly once by the owner, observed here
// within one tick.
func (b *Beeper) Run(sink GainSink, volume float64, stop <-chan struct{}) {
	i := 0
	for {
		select {
		case <-stop:
			b.log.Debug("beeper: stop observed after %d ticks", i)
			return
		default:
		}

		if i%b.period == 0 {
			sink.SetVolume(volume)
		} else {
			sink.SetVolume(0)
		}
		time.Sleep(b.tick)
		i++
	}
}
