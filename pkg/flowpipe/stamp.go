package flowpipe

import "fmt"

// Stamp orders datums on an edge and aligns inputs of one step.
// Two stamps are in sync when their colors are equal. The heartbeat flag
// is metadata and plays no part in comparisons.
type Stamp struct {
	color     uint64
	heartbeat bool
}

// NewStamp returns a data stamp for color.
func NewStamp(color uint64) Stamp {
	return Stamp{color: color}
}

// Color returns the cycle the stamp belongs to.
func (s Stamp) Color() uint64 { return s.color }

// IsHeartbeat reports whether the stamp marks a control-only tick.
func (s Stamp) IsHeartbeat() bool { return s.heartbeat }

// Heartbeat returns a heartbeat stamp with the same color.
func (s Stamp) Heartbeat() Stamp {
	return Stamp{color: s.color, heartbeat: true}
}

// InSync reports whether s and other belong to the same cycle.
func (s Stamp) InSync(other Stamp) bool {
	return s.color == other.color
}

// Before reports whether s belongs to an earlier cycle than other.
func (s Stamp) Before(other Stamp) bool {
	return s.color < other.color
}

// String renders the stamp for logs.
func (s Stamp) String() string {
	if s.heartbeat {
		return fmt.Sprintf("%d(hb)", s.color)
	}
	return fmt.Sprintf("%d", s.color)
}
