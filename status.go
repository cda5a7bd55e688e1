package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state and a summary of local data",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Reconcile with the backend and flush pending writes",
		Args:  cobra.NoArgs,
		RunE:  runPush,
	}
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	SignedIn       bool   `json:"signed_in"`
	Email          string `json:"email,omitempty"`
	State          string `json:"state"`
	LastUpdated    int64  `json:"last_updated"`
	PendingPublish bool   `json:"pending_publish"`
	Products       int    `json:"products"`
	Scenarios      int    `json:"scenarios"`
}

func runStatus(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	synced := a.awaitSync()
	st := a.syncer.Status()
	_, signedIn := a.ids.Current()

	out := statusOutput{
		SignedIn:       signedIn,
		Email:          a.ids.Email(),
		State:          st.State.String(),
		LastUpdated:    st.LastUpdated,
		PendingPublish: st.PendingPublish,
		Products:       len(a.store.Products()),
		Scenarios:      len(a.store.Scenarios()),
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	if !signedIn {
		fmt.Println("Account:    not signed in")
	} else {
		fmt.Printf("Account:    %s\n", out.Email)
	}

	fmt.Printf("Sync:       %s\n", out.State)
	fmt.Printf("Updated:    %s\n", formatTimestamp(out.LastUpdated))
	fmt.Printf("Products:   %d\n", out.Products)
	fmt.Printf("Scenarios:  %d\n", out.Scenarios)

	if out.PendingPublish {
		fmt.Println("Pending:    unpublished local changes")
	}

	if signedIn && !synced {
		fmt.Println("Note:       backend unreachable, showing cached state")
	}

	return nil
}

func runPush(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if _, ok := a.ids.Current(); !ok {
		return fmt.Errorf("not signed in, run: priceloom login")
	}

	if !a.awaitSync() {
		return fmt.Errorf("backend did not answer within the wait window")
	}

	a.syncer.Flush()

	st := a.syncer.Status()
	statusf("Synced, last updated %s.\n", formatTimestamp(st.LastUpdated))

	return nil
}
