// Package batch partitions an ordered task backlog into batches bounded by a
// task count and an approximate token budget.
package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/phrazzld/triage/internal/domain"
)

// Batcher splits backlogs. It holds no state between calls.
type Batcher struct {
	MaxTasks  int
	MaxTokens int
	Estimator Estimator
}

// New creates a Batcher. A nil estimator uses CharQuarter.
func New(maxTasks, maxTokens int, est Estimator) *Batcher {
	if est == nil {
		est = CharQuarter{}
	}
	return &Batcher{MaxTasks: maxTasks, MaxTokens: maxTokens, Estimator: est}
}

// Split partitions tasks in a single order-preserving pass. A batch is closed
// before a task that would exceed MaxTasks or push the running estimate over
// MaxTokens. No batch is empty; a task larger than the budget forms its own
// batch.
func (b *Batcher) Split(tasks []domain.Task) [][]domain.Task {
	est := b.Estimator
	if est == nil {
		est = CharQuarter{}
	}

	var (
		batches [][]domain.Task
		cur     []domain.Task
		size    int
	)

	for _, t := range tasks {
		n := est.Estimate(t)
		if len(cur) > 0 && (len(cur) >= b.MaxTasks || size+n > b.MaxTokens) {
			batches = append(batches, cur)
			cur, size = nil, 0
		}
		cur = append(cur, t)
		size += n
	}

	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// FormatForSummary renders a batch as the text handed to a summarizer: one
// block per task separated by blank lines.
func FormatForSummary(batch []domain.Task) string {
	blocks := make([]string, 0, len(batch))
	for _, t := range batch {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Task %d: %s\n", t.ID, t.Description)
		fmt.Fprintf(&sb, "Urgency: %s\n", t.Urgency)
		fmt.Fprintf(&sb, "Status: %s\n", t.Status)
		if t.AlertAt != nil {
			fmt.Fprintf(&sb, "Alert At: %s\n", t.AlertAt.UTC().Format(time.RFC3339))
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n")
}
