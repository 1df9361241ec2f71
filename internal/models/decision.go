package models

// PreLoginDecision is the outcome of the pre-login check.
// Implemented by Allow, AllowWithTicket and Deny; match with a type switch.
type PreLoginDecision interface {
	isPreLoginDecision()
}

// Allow admits a player whose durable record is fully linked.
type Allow struct{}

// AllowWithTicket admits a player whose approved ticket must be consumed on join.
type AllowWithTicket struct {
	Ticket *LinkTicket
}

// Deny keeps a player out (or quarantined) and carries the message to show.
type Deny struct {
	Reason  DenyReason
	Message string
}

func (Allow) isPreLoginDecision()           {}
func (AllowWithTicket) isPreLoginDecision() {}
func (Deny) isPreLoginDecision()            {}

// DenyReason classifies a Deny decision
type DenyReason string

// DenyReason constants
const (
	DenyApplicationInReview DenyReason = "application_in_review"
	DenyTicketDenied        DenyReason = "ticket_denied"
	DenyUnderReview         DenyReason = "under_review"
	DenyRelinkRequired      DenyReason = "relink_required"
	DenyRankNotLinked       DenyReason = "rank_not_linked"
	DenyNotLinked           DenyReason = "not_linked"
	DenyUnavailable         DenyReason = "unavailable"
	DenyTimeout             DenyReason = "timeout"
)

// DecisionName returns a stable name for logging and metrics
func DecisionName(d PreLoginDecision) string {
	switch d := d.(type) {
	case Allow:
		return "allow"
	case AllowWithTicket:
		return "allow_with_ticket"
	case Deny:
		return "deny_" + string(d.Reason)
	default:
		return "unknown"
	}
}

// LinkResult is the outcome of CreateLink.
// Implemented by LinkSuccess and LinkRejected.
type LinkResult interface {
	isLinkResult()
}

// LinkSuccess means the ticket and reverse mapping are persisted.
type LinkSuccess struct {
	Ticket *LinkTicket
	// Returning is set when the player already has a durable record.
	Returning bool
}

// LinkRejected means the link conflicts with an existing binding.
type LinkRejected struct {
	Reason RejectReason
}

func (LinkSuccess) isLinkResult()  {}
func (LinkRejected) isLinkResult() {}

// RejectReason is a user-facing rejection reason
type RejectReason string

// RejectReason constants
const (
	RejectAlreadyLinked      RejectReason = "already linked to another account"
	RejectPendingForAnother  RejectReason = "pending link for another account"
	RejectMissingDiscordLink RejectReason = "discord account must be linked first"
)
