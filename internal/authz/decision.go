package authz

type Decision int

const (
	DecisionAllow Decision = iota
	DecisionDeny
	DecisionSystemError
)

// Reason codes attached to non-allow results. Authentication failures
// all collapse to ReasonInvalidToken so callers cannot probe which
// check rejected them.
const (
	ReasonMissingCredential = "missing credential"
	ReasonKeysExpired       = "keys expired"
	ReasonInvalidToken      = "invalid token"
	ReasonNoPolicy          = "no policy provided"
	ReasonBadPolicy         = "bad policy"
	ReasonPolicyFailed      = "policy evaluation failed"
	ReasonPolicyDenied      = "policy denied"
	ReasonNonBoolean        = "policy returned non-boolean"
)

// Result is the tri-state outcome of one authorization request.
type Result struct {
	Decision Decision
	Reason   string
}

func Allow() Result {
	return Result{Decision: DecisionAllow}
}

func Deny(reason string) Result {
	return Result{Decision: DecisionDeny, Reason: reason}
}

func SystemError(reason string) Result {
	return Result{Decision: DecisionSystemError, Reason: reason}
}
