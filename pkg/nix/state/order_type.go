package state

// OrderType is the taker-supplied order_type parameter (u8 ∈ 0..=5).
type OrderType uint8

const (
	Limit OrderType = iota
	ImmediateOrCancel
	PostOnly
	Global
	Reverse
	P2P2Pool
)

func (o OrderType) String() string {
	switch o {
	case Limit:
		return "Limit"
	case ImmediateOrCancel:
		return "ImmediateOrCancel"
	case PostOnly:
		return "PostOnly"
	case Global:
		return "Global"
	case Reverse:
		return "Reverse"
	case P2P2Pool:
		return "P2P2Pool"
	default:
		return "Unknown"
	}
}

// CanRest reports whether an order of this type may be inserted into a
// bookside as a resting maker. Immediate-or-cancel orders never rest.
func (o OrderType) CanRest() bool {
	return o != ImmediateOrCancel
}

// CanTake reports whether an order of this type is allowed to act as a
// taker against the opposite bookside. PostOnly and Global orders never
// take.
func (o OrderType) CanTake() bool {
	return o != PostOnly && o != Global
}
