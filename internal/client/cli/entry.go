package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/client/models"
)

// Add collects one pain observation interactively and persists it. The
// entry is written locally first and queued for sync; severe entries
// (level 8+) queue at high priority.
func (a *App) Add(ctx context.Context) error {
	if !a.isLoggedIn() {
		printlnFn("Log in first.")
		return nil
	}

	level, err := GetInt(a.reader, "Pain level (0-10)", 0, 10, os.Stdout)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	location, err := getSimpleText(a.reader, "Location (optional)", os.Stdout)
	if err != nil {
		return err
	}
	notes, err := GetMultiline(a.reader, "Notes (optional):", os.Stdout)
	if err != nil {
		return err
	}
	triggers, err := GetCommaList(a.reader, "Triggers, comma separated (optional)", os.Stdout)
	if err != nil {
		return err
	}

	entry := a.newEntry(level, location, notes, triggers)
	id, err := a.entryService.Add(ctx, entry)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	printlnFn("Saved", id)
	return nil
}

func (a *App) newEntry(level int, location, notes string, triggers []string) *models.PainEntry {
	return &models.PainEntry{
		Level:      level,
		Location:   location,
		Notes:      notes,
		Triggers:   triggers,
		RecordedAt: time.Now().UTC(),
	}
}

// List prints all live entries, newest first.
func (a *App) List(ctx context.Context) error {
	if !a.isLoggedIn() {
		printlnFn("Log in first.")
		return nil
	}

	views, err := a.entryService.List(ctx)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	if len(views) == 0 {
		printlnFn("No entries yet.")
		return nil
	}
	for _, v := range views {
		printlnFn(fmt.Sprintf("%s  %s", v.ID, v.Entry))
	}
	return nil
}

// Show prompts for an entry id and prints the full decrypted entry.
func (a *App) Show(ctx context.Context) error {
	if !a.isLoggedIn() {
		printlnFn("Log in first.")
		return nil
	}

	id, err := getSimpleText(a.reader, "Enter entry id to show", os.Stdout)
	if err != nil {
		return err
	}

	view, err := a.entryService.Get(ctx, id)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	e := view.Entry
	printlnFn(fmt.Sprintf("Recorded: %s", e.RecordedAt.Local().Format(time.RFC1123)))
	printlnFn(fmt.Sprintf("Level: %d/10", e.Level))
	if e.Location != "" {
		printlnFn("Location:", e.Location)
	}
	if e.Notes != "" {
		printlnFn("Notes:", e.Notes)
	}
	if len(e.Triggers) > 0 {
		printlnFn("Triggers:", strings.Join(e.Triggers, ", "))
	}
	printlnFn(fmt.Sprintf("Version: %d", view.Version))
	return nil
}

// Delete prompts for an entry id, confirms, and tombstones the entry. The
// deletion itself syncs at high priority.
func (a *App) Delete(ctx context.Context) error {
	if !a.isLoggedIn() {
		printlnFn("Log in first.")
		return nil
	}

	id, err := getSimpleText(a.reader, "Enter entry id to delete", os.Stdout)
	if err != nil {
		return err
	}
	ok, err := confirm(a, "Delete this entry everywhere?")
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("Cancelled.")
		return nil
	}

	if err := a.entryService.Delete(ctx, id); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Deleted.")
	return nil
}
