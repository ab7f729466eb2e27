package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kozaktomas/face-sculptor/internal/database"
	"github.com/kozaktomas/face-sculptor/internal/logging"
	"github.com/kozaktomas/face-sculptor/internal/session"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect saved edit sessions",
	Long:  `List, show and delete sessions in the store selected by DATABASE_URL.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the sessions of an owner, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the values of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session of an owner",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)

	sessionsCmd.PersistentFlags().String("owner", "", "Owner reference (required)")
	sessionsListCmd.Flags().Bool("json", false, "Output as JSON")
	sessionsShowCmd.Flags().Bool("json", false, "Output as JSON")
}

// openSessions connects to the configured store. The caller closes the repository.
func openSessions(cmd *cobra.Command) (*session.Service, session.Repository, string, error) {
	owner := mustGetString(cmd, "owner")
	if owner == "" {
		return nil, nil, "", errors.New("--owner is required")
	}
	cfg, catalog, err := loadCatalog()
	if err != nil {
		return nil, nil, "", err
	}
	repo, err := database.Open(cmd.Context(), &cfg.Database)
	if err != nil {
		return nil, nil, "", err
	}
	return session.NewService(repo, catalog, logging.For("sessions")), repo, owner, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	svc, repo, owner, err := openSessions(cmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	list, err := svc.List(cmd.Context(), owner)
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	fmt.Printf("%-26s  %-12s  %-20s  %-5s  %s\n", "ID", "CATEGORY", "CREATED", "IMAGE", "NAME")
	for _, m := range list {
		image := "-"
		if m.HasReferenceImage {
			image = "yes"
		}
		fmt.Printf("%-26s  %-12s  %-20s  %-5s  %s\n", m.ID, m.Category, m.CreatedAt.Local().Format("2006-01-02 15:04:05"), image, m.Name)
	}
	fmt.Printf("\n%d session(s)\n", len(list))
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	svc, repo, owner, err := openSessions(cmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	s, err := svc.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if s.OwnerRef != owner {
		return session.ErrNotOwner
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(s.Metadata())
	}

	fmt.Printf("Session:  %s\n", s.ID)
	if s.Name != "" {
		fmt.Printf("Name:     %s\n", s.Name)
	}
	fmt.Printf("Category: %s\n", s.Category)
	fmt.Printf("Created:  %s\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if s.ParentID != "" {
		fmt.Printf("Parent:   %s\n", s.ParentID)
	}
	ids := make([]string, 0, len(s.Values))
	for id := range s.Values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Println("Values:")
	for _, id := range ids {
		fmt.Printf("  %-28s %g\n", id, s.Values[id])
	}
	if len(s.Selections) > 0 {
		pairs := make([]string, 0, len(s.Selections))
		for feature, cat := range s.Selections {
			pairs = append(pairs, feature+"="+cat)
		}
		sort.Strings(pairs)
		fmt.Printf("Selections: %s\n", strings.Join(pairs, ", "))
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	svc, repo, owner, err := openSessions(cmd)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := svc.Delete(cmd.Context(), args[0], owner); err != nil {
		return err
	}
	fmt.Printf("Deleted session %s\n", args[0])
	return nil
}
