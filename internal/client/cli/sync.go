package cli

import (
	"context"
	"fmt"
	"os"
)

// Sync drains the queue now instead of waiting for the scheduler.
func (a *App) Sync(ctx context.Context) error {
	outcomes, err := a.entryService.Sync(ctx)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	if len(outcomes) == 0 {
		printlnFn("Nothing to sync.")
		return nil
	}

	counts := map[string]int{}
	for _, o := range outcomes {
		counts[o.Kind.String()]++
	}
	for kind, n := range counts {
		printlnFn(fmt.Sprintf("%s: %d", kind, n))
	}
	return nil
}

// Status shows how much is still waiting to sync and any held failures.
func (a *App) Status(ctx context.Context) error {
	n, err := a.entryService.PendingCount(ctx)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn(fmt.Sprintf("Connectivity: %s", a.monitor.Now()))
	printlnFn(fmt.Sprintf("Pending: %d", n))

	failures, err := a.entryService.Failures(ctx)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	if len(failures) == 0 {
		return nil
	}

	printlnFn("Held failures (use 'accept' to discard):")
	for _, it := range failures {
		printlnFn(fmt.Sprintf("  %s  %s %s  %s", it.ID, it.Op, it.RecordID, it.FailureReason))
	}
	return nil
}

// Accept discards one held terminal failure after the user has seen it.
func (a *App) Accept(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter failed item id to accept", os.Stdout)
	if err != nil {
		return err
	}
	if err := a.entryService.AcceptFailure(ctx, id); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Accepted.")
	return nil
}
