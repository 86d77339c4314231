package runtime

import (
	"time"

	"github.com/nixlabs/nix-engine/pkg/nix/state"
	"github.com/nixlabs/nix-engine/pkg/util"
)

// slotDuration approximates the originating chain's ~400ms slot cadence,
// used only to turn wall-clock time into a monotonically increasing
// state.Slot for expiry checks.
const slotDuration = 400 * time.Millisecond

// SlotClock supplies the current slot to the dispatcher, the same
// Clock-interface split util.Clock uses for RealClock vs a test clock.
type SlotClock interface {
	CurrentSlot() state.Slot
}

// RealSlotClock derives a slot number from elapsed wall-clock time since it
// was constructed, using util.RealClock as its time source.
type RealSlotClock struct {
	clock util.Clock
	start time.Time
}

// NewRealSlotClock starts a slot clock at slot zero.
func NewRealSlotClock() *RealSlotClock {
	return &RealSlotClock{clock: util.RealClock{}, start: time.Now()}
}

func (c *RealSlotClock) CurrentSlot() state.Slot {
	elapsed := c.clock.Now().Sub(c.start)
	return state.Slot(elapsed / slotDuration)
}

// ManualSlotClock is a directly-settable clock for tests, where a caller
// wants exact control over which slot a cancel or expiry check runs against.
type ManualSlotClock struct {
	slot state.Slot
}

func NewManualSlotClock(slot state.Slot) *ManualSlotClock {
	return &ManualSlotClock{slot: slot}
}

func (c *ManualSlotClock) CurrentSlot() state.Slot { return c.slot }

func (c *ManualSlotClock) Advance(n state.Slot) { c.slot += n }
