package rules

// TrustRank is the platform-assigned account standing tier, used as an
// automod gate. Absence of any recognized trust tag maps to Visitor.
type TrustRank int

const (
	TrustVisitor TrustRank = iota
	TrustNew
	TrustKnown
	TrustTrusted
	TrustVeteran
	TrustLegendary
)

// trustTags maps platform trust tags to ranks. A profile may carry
// several; the highest one wins.
var trustTags = map[string]TrustRank{
	"system_trust_basic":   TrustNew,
	"system_trust_known":   TrustKnown,
	"system_trust_trusted": TrustTrusted,
	"system_trust_veteran": TrustVeteran,
	"system_trust_legend":  TrustLegendary,
}

// String returns the human-readable rank name used in decision reasons.
func (r TrustRank) String() string {
	switch r {
	case TrustNew:
		return "New User"
	case TrustKnown:
		return "Known User"
	case TrustTrusted:
		return "Trusted User"
	case TrustVeteran:
		return "Veteran User"
	case TrustLegendary:
		return "Legendary User"
	case TrustVisitor:
		return "Visitor"
	default:
		return "Visitor"
	}
}

// TrustRankFromTags derives the highest trust rank present in a tag set.
func TrustRankFromTags(tags []string) TrustRank {
	rank := TrustVisitor

	for _, tag := range tags {
		if r, ok := trustTags[tag]; ok && r > rank {
			rank = r
		}
	}

	return rank
}
