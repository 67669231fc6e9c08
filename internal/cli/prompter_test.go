package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caravelhq/caravel/internal/model"
)

func pendingTransaction() *model.Transaction {
	price := decimal.RequireFromString("450000")
	now := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)
	return &model.Transaction{
		ID:         "txn-1",
		Status:     model.StatusPending,
		Source:     model.MethodHybrid,
		Confidence: 0.85,
		Fields: model.TransactionFields{
			TransactionType: model.TypePurchase,
			PropertyAddress: "123 Main Street",
			Price:           &price,
			ListingID:       "MLS4471",
			ClosingDate:     "2026-03-14",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestReviewTransaction_Confirm(t *testing.T) {
	var out bytes.Buffer
	p := NewReviewPrompter(strings.NewReader("c\n"), &out)

	d, err := p.ReviewTransaction(context.Background(), pendingTransaction())
	require.NoError(t, err)

	assert.Equal(t, "txn-1", d.TransactionID)
	assert.Equal(t, model.ActionConfirm, d.Action)
	assert.Nil(t, d.Corrections)
	assert.False(t, d.Skipped)
	assert.False(t, d.Quit)

	assert.Contains(t, out.String(), "123 Main Street")
	assert.Contains(t, out.String(), "450000.00")
}

func TestReviewTransaction_RejectWithReason(t *testing.T) {
	var out bytes.Buffer
	p := NewReviewPrompter(strings.NewReader("r\nnot a real estate transaction\n"), &out)

	d, err := p.ReviewTransaction(context.Background(), pendingTransaction())
	require.NoError(t, err)

	assert.Equal(t, model.ActionReject, d.Action)
	require.NotNil(t, d.Corrections)
	assert.Equal(t, "not a real estate transaction", d.Corrections.Reason)
}

func TestReviewTransaction_RejectWithoutReason(t *testing.T) {
	var out bytes.Buffer
	p := NewReviewPrompter(strings.NewReader("r\n\n"), &out)

	d, err := p.ReviewTransaction(context.Background(), pendingTransaction())
	require.NoError(t, err)

	assert.Equal(t, model.ActionReject, d.Action)
	assert.Nil(t, d.Corrections)
}

func TestReviewTransaction_EditChangesFields(t *testing.T) {
	var out bytes.Buffer
	// address changed, type kept, listing kept, closing date changed.
	p := NewReviewPrompter(strings.NewReader("e\n125 Main Street\n\n\n2026-04-01\n"), &out)

	d, err := p.ReviewTransaction(context.Background(), pendingTransaction())
	require.NoError(t, err)

	assert.Equal(t, model.ActionEdit, d.Action)
	require.NotNil(t, d.Corrections)
	assert.Equal(t, map[string]string{
		"property_address": "125 Main Street",
		"closing_date":     "2026-04-01",
	}, d.Corrections.Fields)
}

func TestReviewTransaction_EditWithNoChangesIsConfirm(t *testing.T) {
	var out bytes.Buffer
	p := NewReviewPrompter(strings.NewReader("e\n\n\n\n\n"), &out)

	d, err := p.ReviewTransaction(context.Background(), pendingTransaction())
	require.NoError(t, err)

	assert.Equal(t, model.ActionConfirm, d.Action)
	assert.Nil(t, d.Corrections)
}

func TestReviewTransaction_SkipAndQuit(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantQuit bool
	}{
		{name: "skip", input: "s\n", wantQuit: false},
		{name: "quit", input: "q\n", wantQuit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewReviewPrompter(strings.NewReader(tt.input), &out)

			d, err := p.ReviewTransaction(context.Background(), pendingTransaction())
			require.NoError(t, err)

			assert.True(t, d.Skipped)
			assert.Equal(t, tt.wantQuit, d.Quit)
			assert.Empty(t, d.Action)
		})
	}
}

func TestReviewTransaction_RetriesInvalidChoice(t *testing.T) {
	var out bytes.Buffer
	p := NewReviewPrompter(strings.NewReader("x\nc\n"), &out)

	d, err := p.ReviewTransaction(context.Background(), pendingTransaction())
	require.NoError(t, err)

	assert.Equal(t, model.ActionConfirm, d.Action)
	assert.Contains(t, out.String(), "Please enter one of")
}

func TestReviewTransaction_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	p := NewReviewPrompter(strings.NewReader("c\n"), &out)

	_, err := p.ReviewTransaction(ctx, pendingTransaction())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSessionStats(t *testing.T) {
	var out bytes.Buffer
	input := "c\n" + "e\n125 Main Street\n\n\n\n" + "r\nwrong address\n" + "s\n"
	p := NewReviewPrompter(strings.NewReader(input), &out)
	p.SetTotal(4)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := p.ReviewTransaction(ctx, pendingTransaction())
		require.NoError(t, err)
	}

	stats := p.GetSessionStats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, 1, stats.Edited)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 1, stats.Skipped)

	p.ShowCompletion()
	assert.Contains(t, out.String(), "Review Complete")
}

func TestNonBlockingReader_CanceledMidRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// A pipe with no writer activity blocks reads indefinitely.
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close(); _ = pr.Close() })
	r := NewNonBlockingReader(pr)

	done := make(chan error, 1)
	go func() {
		_, err := r.ReadLine(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInputCancelled)
	case <-time.After(time.Second):
		t.Fatal("ReadLine did not return after context cancellation")
	}
}
