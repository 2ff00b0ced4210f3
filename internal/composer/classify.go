package composer

import "regexp"

// Category selects the failure message shown to the user.
type Category int

const (
	CategoryUnavailable Category = iota
	CategoryPolicyBlocked
	CategoryRealPerson
	CategoryRetryLater
)

func (c Category) String() string {
	switch c {
	case CategoryPolicyBlocked:
		return "policy_blocked"
	case CategoryRealPerson:
		return "real_person"
	case CategoryRetryLater:
		return "retry_later"
	default:
		return "unavailable"
	}
}

var (
	policyPattern     = regexp.MustCompile(`(?i)harassment|discrimination|bullying|prohibited content`)
	realPersonPattern = regexp.MustCompile(`(?i)photorealistic people`)
)

// ClassifyReason maps a provider failure reason to a message category.
func ClassifyReason(reason string) Category {
	switch {
	case policyPattern.MatchString(reason):
		return CategoryPolicyBlocked
	case realPersonPattern.MatchString(reason):
		return CategoryRealPerson
	default:
		return CategoryUnavailable
	}
}
