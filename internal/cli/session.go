package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aretw0/intake/pkg/ports"
)

// ListSessions prints one line per stored conversation, most recent first.
func ListSessions(ctx context.Context, store ports.ConversationStore, opts ports.ListOptions, w io.Writer) error {
	convs, err := store.List(ctx, opts)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(convs) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tCONFIG\tSTATUS\tMESSAGES\tCOLLECTED\tUPDATED")
	for _, c := range convs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			c.SessionID, c.ConfigName, c.Status, len(c.Messages), len(c.CollectedData()),
			c.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// InspectSession prints the stored record of one conversation as indented JSON.
func InspectSession(ctx context.Context, store ports.ConversationStore, sessionID string, w io.Writer) error {
	conv, err := store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading session %q: %w", sessionID, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(conv)
}
