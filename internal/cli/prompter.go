package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/caravelhq/caravel/internal/model"
)

// Disposition is the user's decision on one pending transaction. Skipped
// dispositions carry no action; Quit ends the session after the current
// transaction.
type Disposition struct {
	Corrections   *model.Corrections
	TransactionID string
	Action        model.FeedbackAction
	Skipped       bool
	Quit          bool
}

// SessionStats summarizes one review session.
type SessionStats struct {
	Duration  time.Duration
	Total     int
	Confirmed int
	Edited    int
	Rejected  int
	Skipped   int
}

// editableFields lists the correction-eligible fields in prompt order.
var editableFields = []struct {
	key     string
	label   string
	current func(*model.Transaction) string
}{
	{"property_address", "Property address", func(t *model.Transaction) string { return t.Fields.PropertyAddress }},
	{"transaction_type", "Transaction type", func(t *model.Transaction) string { return string(t.Fields.TransactionType) }},
	{"listing_id", "Listing ID", func(t *model.Transaction) string { return t.Fields.ListingID }},
	{"closing_date", "Closing date", func(t *model.Transaction) string { return t.Fields.ClosingDate }},
}

// ReviewPrompter walks the user through pending transactions one at a time
// and collects dispositions for the feedback recorder.
type ReviewPrompter struct {
	startTime   time.Time
	writer      io.Writer
	reader      *NonBlockingReader
	progressBar *progressbar.ProgressBar
	stats       SessionStats
	total       int
	statsMutex  sync.RWMutex
}

// NewReviewPrompter creates a review prompter with the given reader and
// writer.
func NewReviewPrompter(reader io.Reader, writer io.Writer) *ReviewPrompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &ReviewPrompter{
		reader:    NewNonBlockingReader(reader),
		writer:    writer,
		startTime: time.Now(),
	}
}

// SetTotal sets the number of transactions queued for review.
func (p *ReviewPrompter) SetTotal(total int) {
	p.total = total
	p.initProgressBar()
}

// ReviewTransaction displays one pending transaction and prompts for a
// disposition.
func (p *ReviewPrompter) ReviewTransaction(ctx context.Context, txn *model.Transaction) (Disposition, error) {
	select {
	case <-ctx.Done():
		return Disposition{}, ctx.Err()
	default:
	}

	p.updateProgress()

	content := p.formatTransaction(txn)
	if _, err := fmt.Fprintln(p.writer, RenderBox("Pending Transaction", content)); err != nil {
		return Disposition{}, fmt.Errorf("failed to write transaction box: %w", err)
	}

	options := []string{
		"  [C] Confirm the detection",
		"  [E] Edit fields, then confirm",
		"  [R] Reject the detection",
		"  [S] Skip for now",
		"  [Q] Quit the session",
	}
	if _, err := fmt.Fprintln(p.writer, strings.Join(options, "\n")+"\n"); err != nil {
		return Disposition{}, fmt.Errorf("failed to write options: %w", err)
	}

	choice, err := p.promptChoice(ctx, "Choice [C/E/R/S/Q]", []string{"c", "e", "r", "s", "q"})
	if err != nil {
		return Disposition{}, err
	}

	disposition := Disposition{TransactionID: txn.ID}

	switch choice {
	case "c":
		disposition.Action = model.ActionConfirm
		p.incrementStats(func(s *SessionStats) { s.Confirmed++ })
	case "e":
		corrections, err := p.promptCorrections(ctx, txn)
		if err != nil {
			return Disposition{}, err
		}
		if corrections == nil {
			// Nothing changed; the user confirmed as-is.
			disposition.Action = model.ActionConfirm
			p.incrementStats(func(s *SessionStats) { s.Confirmed++ })
		} else {
			disposition.Action = model.ActionEdit
			disposition.Corrections = corrections
			p.incrementStats(func(s *SessionStats) { s.Edited++ })
		}
	case "r":
		reason, err := p.promptReason(ctx)
		if err != nil {
			return Disposition{}, err
		}
		disposition.Action = model.ActionReject
		if reason != "" {
			disposition.Corrections = &model.Corrections{Reason: reason}
		}
		p.incrementStats(func(s *SessionStats) { s.Rejected++ })
	case "s":
		disposition.Skipped = true
		p.incrementStats(func(s *SessionStats) { s.Skipped++ })
	case "q":
		disposition.Skipped = true
		disposition.Quit = true
	}

	return disposition, nil
}

// GetSessionStats returns statistics about the review session.
func (p *ReviewPrompter) GetSessionStats() SessionStats {
	p.statsMutex.RLock()
	defer p.statsMutex.RUnlock()

	stats := p.stats
	stats.Total = p.total
	stats.Duration = time.Since(p.startTime)
	return stats
}

// ShowCompletion displays the session summary to the user.
func (p *ReviewPrompter) ShowCompletion() {
	if p.progressBar != nil {
		if err := p.progressBar.Finish(); err != nil {
			slog.Warn("Failed to finish progress bar", "error", err)
		}
		if _, err := fmt.Fprintln(p.writer); err != nil {
			slog.Warn("Failed to write newline", "error", err)
		}
	}

	stats := p.GetSessionStats()

	summary := fmt.Sprintf("%s Statistics:\n", ChartIcon) +
		fmt.Sprintf("  • Reviewed: %d of %d\n", stats.Confirmed+stats.Edited+stats.Rejected, stats.Total) +
		fmt.Sprintf("  • Confirmed: %d\n", stats.Confirmed) +
		fmt.Sprintf("  • Edited: %d\n", stats.Edited) +
		fmt.Sprintf("  • Rejected: %d\n", stats.Rejected) +
		fmt.Sprintf("  • Skipped: %d\n", stats.Skipped) +
		fmt.Sprintf("  • Time taken: %s\n", stats.Duration.Round(time.Second))

	if _, err := fmt.Fprintln(p.writer, RenderBox("Review Complete", summary)); err != nil {
		slog.Warn("Failed to write completion box", "error", err)
	}
}

func (p *ReviewPrompter) initProgressBar() {
	p.progressBar = progressbar.NewOptions(p.total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reviewing transactions...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func (p *ReviewPrompter) updateProgress() {
	if p.progressBar != nil {
		if err := p.progressBar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}

func (p *ReviewPrompter) incrementStats(update func(*SessionStats)) {
	p.statsMutex.Lock()
	defer p.statsMutex.Unlock()
	update(&p.stats)
}

func (p *ReviewPrompter) formatTransaction(txn *model.Transaction) string {
	address := txn.Fields.PropertyAddress
	if address == "" {
		address = SubtleStyle.Render("(no address extracted)")
	}
	header := TitleStyle.Render(fmt.Sprintf("%s %s", HouseIcon, address))

	price := SubtleStyle.Render("—")
	if txn.Fields.Price != nil {
		price = "$" + txn.Fields.Price.StringFixed(2)
	}

	details := fmt.Sprintf("%s Details:\n", InfoIcon) +
		fmt.Sprintf("  Type: %s\n", orDash(string(txn.Fields.TransactionType))) +
		fmt.Sprintf("  Price: %s\n", price) +
		fmt.Sprintf("  Listing: %s\n", orDash(txn.Fields.ListingID)) +
		fmt.Sprintf("  Closing: %s\n", orDash(txn.Fields.ClosingDate)) +
		fmt.Sprintf("  Detected: %s via %s\n", txn.CreatedAt.Format("Jan 2, 2006"), txn.Source)

	confidence := fmt.Sprintf("\n%s Confidence: %.0f%%", ChartIcon, txn.Confidence*100)

	return header + "\n\n" + details + confidence
}

func orDash(s string) string {
	if s == "" {
		return SubtleStyle.Render("—")
	}
	return s
}

// promptCorrections walks the editable fields; an empty answer keeps the
// current value. Returns nil when nothing changed.
func (p *ReviewPrompter) promptCorrections(ctx context.Context, txn *model.Transaction) (*model.Corrections, error) {
	if _, err := fmt.Fprintln(p.writer, FormatInfo("Press enter to keep the current value.")); err != nil {
		return nil, fmt.Errorf("failed to write edit hint: %w", err)
	}

	changed := make(map[string]string)
	for _, field := range editableFields {
		current := field.current(txn)
		if _, err := fmt.Fprintf(p.writer, "%s [%s]: ", FormatPrompt(field.label), orDash(current)); err != nil {
			return nil, fmt.Errorf("failed to write field prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return nil, err
		}
		if input != "" && input != current {
			changed[field.key] = input
		}
	}

	if len(changed) == 0 {
		return nil, nil
	}
	return &model.Corrections{Fields: changed}, nil
}

func (p *ReviewPrompter) promptReason(ctx context.Context) (string, error) {
	if _, err := fmt.Fprintf(p.writer, "%s: ", FormatPrompt("Reason (optional)")); err != nil {
		return "", fmt.Errorf("failed to write reason prompt: %w", err)
	}
	return p.reader.ReadLine(ctx)
}

func (p *ReviewPrompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if _, err := fmt.Fprintf(p.writer, "%s: ", FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			if err == io.EOF {
				return "", fmt.Errorf("input terminated")
			}
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(p.writer, FormatWarning(fmt.Sprintf("Please enter one of: %s", strings.Join(validChoices, ", ")))); err != nil {
			return "", fmt.Errorf("failed to write retry hint: %w", err)
		}
	}
}
