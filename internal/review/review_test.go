package review_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/dossier-outreach/internal/dossier"
	"github.com/shpitdev/dossier-outreach/internal/lead"
	"github.com/shpitdev/dossier-outreach/internal/mail"
	"github.com/shpitdev/dossier-outreach/internal/review"
)

func TestMachineTransitions(t *testing.T) {
	m := review.NewMachine(review.Pending)
	require.NoError(t, m.To(review.Reviewing))
	require.NoError(t, m.To(review.Approved))
	require.NoError(t, m.To(review.Sending))
	require.NoError(t, m.To(review.Sent))
	assert.True(t, m.State().Terminal())
	assert.Equal(t, []review.State{review.Pending, review.Reviewing, review.Approved, review.Sending, review.Sent}, m.History())

	illegal := []struct{ from, to review.State }{
		{review.Pending, review.Sending},
		{review.Reviewing, review.Sent},
		{review.Skipped, review.Sending},
		{review.Sent, review.Reviewing},
		{review.Approved, review.Skipped},
	}
	for _, tc := range illegal {
		err := review.NewMachine(tc.from).To(tc.to)
		require.Error(t, err, "%s -> %s", tc.from, tc.to)
		assert.True(t, errors.Is(err, review.ErrIllegalTransition))
	}

	preview := review.NewMachine(review.Sending)
	require.NoError(t, preview.To(review.Previewed))
	assert.True(t, preview.State().Terminal())

	m = review.NewMachine(review.AwaitingDecision)
	require.NoError(t, m.To(review.Reviewing))
	require.NoError(t, m.To(review.Skipped))
}

type fakeSender struct {
	sent []mail.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, m mail.Message) error {
	f.sent = append(f.sent, m)
	return f.err
}

var sig = mail.Signature{Name: "Graham Gordon", Company: "FastCapitalNYC.com"}

func setup(t *testing.T) (*lead.Adapter, *lead.MemoryStore, review.Draft) {
	t.Helper()
	store := lead.NewMemoryStore([][]string{
		{"Prospect_Name", "Company_Name", "Prospect_Email", "Prospect_Phone", "Status", "Dossier_JSON", "Sources"},
		{"Jane Doe", "Acme Corp", "jane@acme.test", "", ""},
	})
	a := lead.NewAdapter(store, nil)
	_, err := a.Prepare(context.Background(), nil)
	require.NoError(t, err)
	leads, err := a.FetchNewLeads(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 1)

	return a, store, review.Draft{
		Lead: leads[0],
		Assets: dossier.Assets{
			ProspectTitle:         "CEO",
			HalbertHook:           "second plant",
			CapitalNeedHypothesis: "needs financing",
			EmailSubject:          "Your second plant",
			EmailBody:             "Hi Jane,\n\nCongrats.",
		},
		DossierJSON: `{"search_metadata":{"total_queries":5}}`,
		Sources:     `[{"title":"a","uri":"https://a.test"}]`,
	}
}

func cell(t *testing.T, store *lead.MemoryStore, header string) string {
	t.Helper()
	rows := store.Rows()
	for i, h := range rows[0] {
		if h == header {
			if i < len(rows[1]) {
				return rows[1][i]
			}
			return ""
		}
	}
	t.Fatalf("no column %q", header)
	return ""
}

func TestApproveSendsWithSignature(t *testing.T) {
	a, store, draft := setup(t)
	sender := &fakeSender{}
	d := review.NewDispatcher(review.Always(review.Approve), sender, a, sig, nil)

	out, err := d.Process(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, review.Sent, out.State)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "jane@acme.test", msg.To)
	assert.Equal(t, "Your second plant", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.Body, "Hi Jane,\n\nCongrats.\n\n-- \nSincerely,"))
	assert.Contains(t, msg.Body, "Graham Gordon\nFastCapitalNYC.com")

	assert.Equal(t, "Sent", cell(t, store, "Status"))
	assert.Equal(t, "Hi Jane,\n\nCongrats.", cell(t, store, "Selected_Email_Body"), "body is stored without the signature")
	assert.Equal(t, draft.DossierJSON, cell(t, store, "Dossier_JSON"))
	assert.Equal(t, draft.Sources, cell(t, store, "Sources"))
}

func TestSendFailureKeepsDossierFields(t *testing.T) {
	a, store, draft := setup(t)
	sender := &fakeSender{err: errors.New("535 authentication failed password=hunter2 " + strings.Repeat("x", 800))}
	d := review.NewDispatcher(review.Always(review.Approve), sender, a, sig, nil)

	out, err := d.Process(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, review.SendFailed, out.State)
	require.Error(t, out.SendErr)

	status := cell(t, store, "Status")
	assert.True(t, strings.HasPrefix(status, "Send Failed: 535 authentication failed"))
	assert.LessOrEqual(t, len([]rune(status)), lead.MaxStatusLen)
	assert.NotContains(t, status, "hunter2")
	assert.Equal(t, "CEO", cell(t, store, "Prospect_Title"))
	assert.Equal(t, draft.DossierJSON, cell(t, store, "Dossier_JSON"))
}

func TestSkipDoesNotSend(t *testing.T) {
	a, store, draft := setup(t)
	sender := &fakeSender{}
	out, err := review.NewDispatcher(review.Always(review.Skip), sender, a, sig, nil).Process(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, review.Skipped, out.State)
	assert.Empty(t, sender.sent)
	assert.Equal(t, "Skipped", cell(t, store, "Status"))
	assert.Equal(t, "Your second plant", cell(t, store, "Selected_Email_Subject"))
}

func TestDeferThenResume(t *testing.T) {
	a, store, draft := setup(t)
	sender := &fakeSender{}

	out, err := review.NewDispatcher(review.Always(review.Defer), sender, a, sig, nil).Process(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, review.AwaitingDecision, out.State)
	assert.Equal(t, "REVIEW_PENDING", cell(t, store, "Status"))

	pending, err := a.FetchByStatus(context.Background(), lead.StatusReviewPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	draft.Lead = pending[0]

	out, err = review.NewDispatcher(review.Always(review.Approve), sender, a, sig, nil).Resume(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, review.Sent, out.State)
	assert.Len(t, sender.sent, 1)
	assert.Equal(t, "Sent", cell(t, store, "Status"))
}

func TestDeciderErrorParksDraft(t *testing.T) {
	a, store, draft := setup(t)
	before := store.Writes()
	sender := &fakeSender{}
	failing := review.DeciderFunc(func(context.Context, review.Draft) (review.Decision, error) {
		return 0, review.ErrNoDecision
	})
	out, err := review.NewDispatcher(failing, sender, a, sig, nil).Process(context.Background(), draft)
	require.Error(t, err)
	assert.True(t, errors.Is(err, review.ErrNoDecision))
	var undecided *review.UndecidedError
	assert.True(t, errors.As(err, &undecided))

	assert.Equal(t, review.AwaitingDecision, out.State)
	assert.Equal(t, lead.StatusReviewPending, out.Status)
	assert.Empty(t, sender.sent)
	assert.Equal(t, before+1, store.Writes())
	assert.Equal(t, "REVIEW_PENDING", cell(t, store, "Status"))
	assert.Equal(t, "CEO", cell(t, store, "Prospect_Title"))
	assert.Equal(t, draft.DossierJSON, cell(t, store, "Dossier_JSON"))
}

func TestDeciderCancelledStillParks(t *testing.T) {
	a, store, draft := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	waiting := review.DeciderFunc(func(ctx context.Context, _ review.Draft) (review.Decision, error) {
		cancel()
		<-ctx.Done()
		return 0, ctx.Err()
	})
	_, err := review.NewDispatcher(waiting, &fakeSender{}, a, sig, nil).Process(ctx, draft)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, "REVIEW_PENDING", cell(t, store, "Status"))
}

func TestDryRunApprovalIsNotRecordedAsSent(t *testing.T) {
	a, store, draft := setup(t)
	dry := mail.NewDryRun(nil)

	out, err := review.NewDispatcher(review.Always(review.Approve), dry, a, sig, nil).Process(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, review.Previewed, out.State)
	assert.Len(t, dry.Sent(), 1)
	assert.Equal(t, "New", cell(t, store, "Status"))
	assert.Equal(t, "Your second plant", cell(t, store, "Selected_Email_Subject"))

	fresh, err := a.FetchNewLeads(context.Background())
	require.NoError(t, err)
	require.Len(t, fresh, 1)

	// A resumed draft stays parked.
	require.NoError(t, a.MarkStatus(context.Background(), fresh[0], lead.StatusReviewPending))
	out, err = review.NewDispatcher(review.Always(review.Approve), dry, a, sig, nil).Resume(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, review.Previewed, out.State)
	assert.Equal(t, "REVIEW_PENDING", cell(t, store, "Status"))
}

func TestConsoleDecider(t *testing.T) {
	draft := review.Draft{
		Lead:   lead.Lead{Row: 3, ProspectName: "Jane Doe", CompanyName: "Acme Corp"},
		Assets: dossier.Assets{EmailSubject: "Your second plant", EmailBody: "Hi Jane"},
	}

	t.Run("reprompts on invalid input", func(t *testing.T) {
		var out bytes.Buffer
		c := review.NewConsole(strings.NewReader("yes\n\n2\n"), &out)
		dec, err := c.Decide(context.Background(), draft)
		require.NoError(t, err)
		assert.Equal(t, review.Skip, dec)
		assert.Equal(t, 2, strings.Count(out.String(), "Please enter 1 or 2."))
		assert.Contains(t, out.String(), "Row 3: Jane Doe at Acme Corp")
		assert.Contains(t, out.String(), "Your second plant")
	})

	t.Run("last line without newline", func(t *testing.T) {
		dec, err := review.NewConsole(strings.NewReader("1"), &bytes.Buffer{}).Decide(context.Background(), draft)
		require.NoError(t, err)
		assert.Equal(t, review.Approve, dec)
	})

	t.Run("eof has no default", func(t *testing.T) {
		_, err := review.NewConsole(strings.NewReader("maybe\n"), &bytes.Buffer{}).Decide(context.Background(), draft)
		require.ErrorIs(t, err, review.ErrNoDecision)
	})
}
