// Package detect turns screen captures into detection samples: which weapon
// occupies each slot and whether the quick menu is open. One sample is
// produced per poll tick; fields the engine could not observe this tick are
// marked unknown rather than guessed.
package detect

import (
	"fmt"
	"time"
)

// SlotResult is the per-tick observation of one weapon slot. Known is false
// when the slot could not be observed at all (capture or hashing failure);
// Known with an empty WeaponID means the slot was observed but no enabled
// weapon matched.
type SlotResult struct {
	Known      bool
	WeaponID   string
	Distance   int
	Confidence float64
}

// Matched reports whether the slot holds a recognized weapon.
func (s SlotResult) Matched() bool { return s.Known && s.WeaponID != "" }

func (s SlotResult) String() string {
	if !s.Known {
		return "unknown"
	}
	if s.WeaponID == "" {
		return "none"
	}
	return fmt.Sprintf("%s(d=%d c=%.2f)", s.WeaponID, s.Distance, s.Confidence)
}

// MenuResult is the per-tick observation of the quick-menu region.
type MenuResult struct {
	Known      bool
	Visible    bool
	Distance   int
	Confidence float64
}

func (m MenuResult) String() string {
	if !m.Known {
		return "unknown"
	}
	if m.Visible {
		return fmt.Sprintf("visible(d=%d)", m.Distance)
	}
	return "hidden"
}

// Sample is one complete detection tick.
type Sample struct {
	At    time.Time
	Slot1 SlotResult
	Slot2 SlotResult
	Menu  MenuResult
}
