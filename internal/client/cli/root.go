package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

// Root runs the REPL against stdin until EOF or an exit command.
func (a *App) Root(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.statusLine, scanner)
}

// statusLine renders the prompt segment: connectivity, lock state, and the
// number of entries still waiting to sync.
func (a *App) statusLine() string {
	state := "locked"
	if a.isLoggedIn() {
		state = "unlocked"
	}

	pending := ""
	if n, err := a.entryService.PendingCount(context.Background()); err == nil && n > 0 {
		pending = fmt.Sprintf(" [%d pending]", n)
	}

	return fmt.Sprintf("%s %s%s", a.monitor.Now(), state, pending)
}
