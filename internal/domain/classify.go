package domain

type FeatureClass string

const (
	// FeatureCore marks the always-available emulator operations:
	// create, load, step, execute, memory, reset, delete.
	FeatureCore FeatureClass = "core"
	// FeatureEnterprise marks optional capabilities that a deployment
	// may not have built yet.
	FeatureEnterprise FeatureClass = "enterprise"
)

type Verdict string

const (
	VerdictPass           Verdict = "pass"
	VerdictExpectedAbsent Verdict = "expected_absent"
	VerdictFail           Verdict = "fail"
)

// Classify assigns severity to an outcome per feature class. A 404 on an
// enterprise path is the documented "not yet built" signal; the same 404
// on a core path is a deployment defect.
func Classify(class FeatureClass, outcome Outcome) Verdict {
	switch outcome.Kind {
	case OutcomeSuccess:
		return VerdictPass
	case OutcomeNotImplemented:
		if class == FeatureCore {
			return VerdictFail
		}
		return VerdictExpectedAbsent
	default:
		return VerdictFail
	}
}
