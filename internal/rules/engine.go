package rules

import (
	"fmt"
)

// Engine evaluates pending join requests against per-group criteria.
// Evaluate is pure given its inputs; the engine holds no state besides
// the keyword-matching procedure.
type Engine struct {
	matcher *keywordMatcher
}

// NewEngine creates a rule engine.
func NewEngine() *Engine {
	return &Engine{matcher: newKeywordMatcher()}
}

// Evaluate runs the ordered check pipeline against one request. The first
// triggered deny among the verification, trust, and account-age checks
// short-circuits the rest of that group, but both keyword scans always
// run because a deny keyword must be able to override any prior verdict.
func (e *Engine) Evaluate(req *JoinRequest, cfg *RuleConfig) RuleDecision {
	var earlier *RuleDecision

	// Age-verification check
	if cfg.AgeVerifiedOnly && !req.AgeVerified {
		earlier = &RuleDecision{
			Action: ActionReject,
			Reason: "age verification required",
		}
	}

	// Trust-rank check
	if earlier == nil && cfg.MinTrustRank > 0 {
		rank := TrustRankFromTags(req.Tags)
		if int(rank) < cfg.MinTrustRank {
			earlier = &RuleDecision{
				Action: ActionReject,
				Reason: fmt.Sprintf("trust rank %s is below minimum level %d", rank, cfg.MinTrustRank),
			}
		}
	}

	// Account-age check. An unknowable age never causes a reject; missing
	// data fails open and leaves the request for the remaining checks.
	if earlier == nil && cfg.MinAccountAgeDays > 0 && req.AccountAgeDays != nil {
		if *req.AccountAgeDays < cfg.MinAccountAgeDays {
			earlier = &RuleDecision{
				Action: ActionReject,
				Reason: fmt.Sprintf("account age %d days is below minimum %d days",
					*req.AccountAgeDays, cfg.MinAccountAgeDays),
			}
		}
	}

	// Both keyword scans run regardless of the checks above
	text := req.Bio + " " + req.StatusDescription
	denyMatch := e.matcher.firstMatch(text, cfg.ExcludeKeywords)
	acceptMatch := e.matcher.firstMatch(text, cfg.RequireKeywords)

	switch {
	case denyMatch != "" && acceptMatch != "":
		return RuleDecision{
			Action: ActionReject,
			Reason: fmt.Sprintf("deny keyword %q matched; accept keyword %q also matched, deny overrides accept",
				denyMatch, acceptMatch),
			MatchedKeyword: denyMatch,
		}
	case denyMatch != "":
		return RuleDecision{
			Action:         ActionReject,
			Reason:         fmt.Sprintf("deny keyword %q matched", denyMatch),
			MatchedKeyword: denyMatch,
		}
	case earlier != nil:
		return *earlier
	case acceptMatch != "":
		return RuleDecision{
			Action:         ActionAccept,
			Reason:         fmt.Sprintf("accept keyword %q matched", acceptMatch),
			MatchedKeyword: acceptMatch,
		}
	default:
		return RuleDecision{
			Action: ActionNoAction,
			Reason: "no rule matched, requires manual review",
		}
	}
}
