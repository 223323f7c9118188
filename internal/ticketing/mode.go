package ticketing

// Mode selects how tickets are minted.  It is fixed when the Issuer is
// built and never changes while the process runs.
type Mode int

const (
	// LiveMinting sends safeMint to the contract and waits for the receipt.
	LiveMinting Mode = iota
	// SimulatedMinting skips the chain and assigns a pseudo-random token id.
	SimulatedMinting
)

func (m Mode) String() string {
	switch m {
	case LiveMinting:
		return "live"
	case SimulatedMinting:
		return "simulated"
	default:
		return "unknown"
	}
}

// ModeFor maps the presence of a platform key onto a Mode.
func ModeFor(live bool) Mode {
	if live {
		return LiveMinting
	}
	return SimulatedMinting
}
