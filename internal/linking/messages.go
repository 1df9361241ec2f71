package linking

import (
	"fmt"

	"github.com/parsascontentcorner/linkgate/internal/models"
)

// Messages holds the user-facing texts attached to Deny decisions.
type Messages struct {
	ApplicationInReview string
	TicketDenied        string
	ReapplyHint         string
	UnderReview         string
	RelinkRequired      string
	RankNotLinked       string
	NotLinked           string
	Unavailable         string
}

// DefaultMessages returns the built-in message set
func DefaultMessages() Messages {
	return Messages{
		ApplicationInReview: "Your application is being reviewed (stage %d of %d).",
		TicketDenied:        "Your link request was denied.",
		ReapplyHint:         "You may submit a new link request.",
		UnderReview:         "Your link request is under review. You will be let in once it is approved.",
		RelinkRequired:      "Your accounts need to be linked again. Use /link in Discord to continue.",
		RankNotLinked:       "Your Discord account is linked. Finish linking your game account to play.",
		NotLinked:           "You must link your Discord account before playing. Use /link in Discord to get started.",
		Unavailable:         "Account verification is temporarily unavailable. Please try again shortly.",
	}
}

func (m Messages) applicationInReview(app *models.Application) string {
	stages := app.Stages
	if stages < app.Stage {
		stages = app.Stage
	}
	return fmt.Sprintf(m.ApplicationInReview, app.Stage, stages)
}

func (m Messages) ticketDenied(ticket *models.LinkTicket) string {
	msg := m.TicketDenied
	if ticket.DecisionReason != "" {
		msg += " Reason: " + ticket.DecisionReason + "."
	}
	if ticket.CanReapply {
		msg += " " + m.ReapplyHint
	}
	return msg
}
