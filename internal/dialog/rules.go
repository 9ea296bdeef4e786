package dialog

// Brevity is a soft token budget for the response.
type Brevity string

const (
	BrevityShort  Brevity = "short"  // ~100 tokens
	BrevityMedium Brevity = "medium" // ~200 tokens
	BrevityLong   Brevity = "long"   // ~300 tokens
)

// Rule describes how the response to a given act should be shaped:
// which beats it covers, in what order, and how long it may run.
type Rule struct {
	// Beats are the response segments in delivery order.
	Beats []string
	// MustAnswerFirst forces the direct answer before anything else.
	MustAnswerFirst bool
	// ReflectEmotionFirst forces emotional acknowledgment before content.
	ReflectEmotionFirst bool
	// Brevity is the default length budget; the planner may raise it.
	Brevity Brevity
	// FollowUp permits ending on a question back to the user.
	FollowUp bool
}

var rules = map[Act]Rule{
	ActGreeting: {
		Beats:    []string{"greet", "check_in"},
		Brevity:  BrevityShort,
		FollowUp: true,
	},
	ActRepair: {
		Beats:   []string{"acknowledge_miss", "correct", "continue"},
		Brevity: BrevityShort,
	},
	ActAck: {
		Beats:   []string{"acknowledge"},
		Brevity: BrevityShort,
	},
	ActQuestion: {
		Beats:           []string{"answer", "elaborate", "follow_up"},
		MustAnswerFirst: true,
		Brevity:         BrevityMedium,
		FollowUp:        true,
	},
	ActPlan: {
		Beats:    []string{"react", "logistics", "confirm"},
		Brevity:  BrevityMedium,
		FollowUp: true,
	},
	ActFeedback: {
		Beats:   []string{"acknowledge", "respond"},
		Brevity: BrevityShort,
	},
	ActShare: {
		Beats:               []string{"reflect_emotion", "validate", "engage"},
		ReflectEmotionFirst: true,
		Brevity:             BrevityMedium,
		FollowUp:            true,
	},
	ActAnswer: {
		Beats:    []string{"acknowledge", "build_on"},
		Brevity:  BrevityMedium,
		FollowUp: true,
	},
	ActUnknown: {
		Beats:    []string{"respond"},
		Brevity:  BrevityMedium,
		FollowUp: true,
	},
}

// RuleFor returns the turn-taking rule for an act. Unmapped acts get
// the unknown rule.
func RuleFor(act Act) Rule {
	if r, ok := rules[act]; ok {
		return r
	}
	return rules[ActUnknown]
}

// TokenBudget converts a brevity level to its token budget.
func TokenBudget(b Brevity) int {
	switch b {
	case BrevityShort:
		return 100
	case BrevityLong:
		return 300
	default:
		return 200
	}
}
