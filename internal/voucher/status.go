package voucher

type Status string

const (
	StatusRedeemed Status = "redeemed"
	StatusUsed     Status = "used"
)

var validNext = map[Status]map[Status]bool{
	StatusRedeemed: {StatusUsed: true},
	StatusUsed:     {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
