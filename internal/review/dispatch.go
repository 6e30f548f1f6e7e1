package review

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/dossier-outreach/internal/dossier"
	"github.com/shpitdev/dossier-outreach/internal/lead"
	"github.com/shpitdev/dossier-outreach/internal/logging"
	"github.com/shpitdev/dossier-outreach/internal/mail"
)

// Decision is the reviewer's answer for one draft.
type Decision int

const (
	Approve Decision = iota + 1
	Skip
	// Defer parks the draft as REVIEW_PENDING for a later review session.
	Defer
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case Skip:
		return "skip"
	case Defer:
		return "defer"
	default:
		return "unknown"
	}
}

// Draft is everything shown to the reviewer and written back afterwards.
type Draft struct {
	Lead   lead.Lead
	Report dossier.Report
	Assets dossier.Assets
	// DossierJSON and Sources are persisted as-is.
	DossierJSON string
	Sources     string
}

// Decider supplies decisions. Decide blocks until one is available; there is no default.
type Decider interface {
	Decide(ctx context.Context, d Draft) (Decision, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, d Draft) (Decision, error)

func (f DeciderFunc) Decide(ctx context.Context, d Draft) (Decision, error) { return f(ctx, d) }

// Always answers every draft with the same decision.
func Always(dec Decision) Decider {
	return DeciderFunc(func(context.Context, Draft) (Decision, error) { return dec, nil })
}

// ResultWriter persists the outcome of a draft. *lead.Adapter implements it.
type ResultWriter interface {
	WriteResult(ctx context.Context, l lead.Lead, u lead.Update) error
}

// Outcome is the final state of a processed draft and the status written for it.
type Outcome struct {
	State  State
	Status string
	// SendErr is set when dispatch failed; the run continues.
	SendErr error
}

// Dispatcher drives drafts through the state machine.
type Dispatcher struct {
	decider   Decider
	sender    mail.Sender
	writer    ResultWriter
	signature mail.Signature
	logger    *zap.Logger
}

func NewDispatcher(decider Decider, sender mail.Sender, writer ResultWriter, sig mail.Signature, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{decider: decider, sender: sender, writer: writer, signature: sig, logger: logger}
}

// UndecidedError reports a draft that got no decision and was parked as REVIEW_PENDING.
// Callers stop asking for further decisions.
type UndecidedError struct {
	Err error
}

func (e *UndecidedError) Error() string { return "review: no decision: " + e.Err.Error() }

func (e *UndecidedError) Unwrap() error { return e.Err }

// Process runs one fresh draft from Pending. A dry-run approval leaves the lead new.
func (d *Dispatcher) Process(ctx context.Context, draft Draft) (Outcome, error) {
	return d.run(ctx, NewMachine(Pending), draft, lead.StatusNew)
}

// Resume runs a draft previously parked as REVIEW_PENDING. A dry-run approval keeps it
// pending.
func (d *Dispatcher) Resume(ctx context.Context, draft Draft) (Outcome, error) {
	return d.run(ctx, NewMachine(AwaitingDecision), draft, lead.StatusReviewPending)
}

// run returns an error when the decision could not be obtained, a transition was illegal,
// or the write-back failed. A failed send is an outcome, not an error. previewStatus is
// written when the sender is a dry run.
func (d *Dispatcher) run(ctx context.Context, m *Machine, draft Draft, previewStatus string) (Outcome, error) {
	logger := d.logger.With(zap.Int("row", draft.Lead.Row), zap.String("prospect", draft.Lead.ProspectName))

	if err := m.To(Reviewing); err != nil {
		return Outcome{State: m.State()}, err
	}
	update := lead.Update{
		Assets:      &draft.Assets,
		DossierJSON: draft.DossierJSON,
		Sources:     draft.Sources,
	}

	dec, err := d.decider.Decide(ctx, draft)
	if err != nil {
		return d.park(ctx, logger, m, draft, update, err)
	}
	logger.Info("review decision", zap.Stringer("decision", dec))
	out := Outcome{}

	switch dec {
	case Defer:
		if err := m.To(AwaitingDecision); err != nil {
			return Outcome{State: m.State()}, err
		}
		update.Status = lead.StatusReviewPending
	case Skip:
		if err := m.To(Skipped); err != nil {
			return Outcome{State: m.State()}, err
		}
		update.Status = lead.StatusSkipped
	case Approve:
		if err := m.To(Approved); err != nil {
			return Outcome{State: m.State()}, err
		}
		if err := m.To(Sending); err != nil {
			return Outcome{State: m.State()}, err
		}
		msg := mail.Message{
			To:      draft.Lead.ProspectEmail,
			Subject: draft.Assets.EmailSubject,
			Body:    mail.Compose(draft.Assets.EmailBody, d.signature),
		}
		if mail.IsDryRun(d.sender) {
			_ = d.sender.Send(ctx, msg)
			if err := m.To(Previewed); err != nil {
				return Outcome{State: m.State()}, err
			}
			update.Status = previewStatus
		} else if sendErr := d.sender.Send(ctx, msg); sendErr != nil {
			logger.Warn("email dispatch failed", logging.Err(sendErr))
			if err := m.To(SendFailed); err != nil {
				return Outcome{State: m.State()}, err
			}
			update.Status = lead.FailureStatus(lead.FailSend, sendErr.Error())
			out.SendErr = sendErr
		} else {
			if err := m.To(Sent); err != nil {
				return Outcome{State: m.State()}, err
			}
			update.Status = lead.StatusSent
		}
	default:
		return Outcome{State: m.State()}, eris.Errorf("review: unknown decision %d", int(dec))
	}

	out.State = m.State()
	out.Status = update.Status
	if err := d.writer.WriteResult(ctx, draft.Lead, update); err != nil {
		return out, eris.Wrap(err, "review: write result")
	}
	logger.Info("review outcome recorded", zap.Stringer("state", out.State), zap.String("status", out.Status))
	return out, nil
}

// park writes the draft as REVIEW_PENDING with its derived fields. The write ignores
// cancellation of ctx so an interrupted review keeps what was computed.
func (d *Dispatcher) park(ctx context.Context, logger *zap.Logger, m *Machine, draft Draft, update lead.Update, cause error) (Outcome, error) {
	if err := m.To(AwaitingDecision); err != nil {
		return Outcome{State: m.State()}, err
	}
	update.Status = lead.StatusReviewPending
	out := Outcome{State: m.State(), Status: update.Status}
	if err := d.writer.WriteResult(context.WithoutCancel(ctx), draft.Lead, update); err != nil {
		return out, eris.Wrapf(err, "review: park undecided row %d", draft.Lead.Row)
	}
	logger.Warn("no review decision; draft parked", logging.Err(cause), zap.String("status", out.Status))
	return out, &UndecidedError{Err: cause}
}
