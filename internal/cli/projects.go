package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/repository"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
	Long:  `List, add and edit client projects.`,
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := repository.ProjectFilter{ClientID: int64Flag(cmd, "client")}
		if s := stringFlag(cmd, "status"); s != nil {
			status := domain.ProjectStatus(*s)
			filter.Status = &status
		}

		projects, err := appInstance.Projects.List(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}

		if len(projects) == 0 {
			fmt.Println("No projects found")
			return nil
		}

		fmt.Printf("%-5s %-25s %-25s %-12s %-10s\n", "ID", "Name", "Client", "Rate", "Status")
		fmt.Println("--------------------------------------------------------------------------------")

		for _, p := range projects {
			fmt.Printf("%-5d %-25s %-25s %-12s %-10s\n",
				p.ID,
				truncate(p.Name, 25),
				truncate(p.ClientName, 25),
				optionalMoney(p.HourlyRate),
				p.Status,
			)
		}

		fmt.Printf("\nTotal: %d project(s)\n", len(projects))
		return nil
	},
}

var projectsAddCmd = &cobra.Command{
	Use:   "add [client_id] [name]",
	Short: "Add a project to a client",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, err := parseID("client", args[0])
		if err != nil {
			return err
		}

		patch, err := projectPatchFromFlags(cmd)
		if err != nil {
			return err
		}

		project := domain.NewProject(clientID, args[1])
		project.Apply(patch)
		if err := project.Validate(); err != nil {
			return fmt.Errorf("invalid project: %w", err)
		}

		if err := appInstance.Projects.Create(cmd.Context(), project); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		fmt.Printf("✓ Project created: %s (ID: %d)\n", project.Name, project.ID)
		return nil
	},
}

var projectsEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit a project",
	Long: `Edit a project. Only the flags given are changed.
Pass "none" to --rate or a budget flag to clear it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("project", args[0])
		if err != nil {
			return err
		}

		patch, err := projectPatchFromFlags(cmd)
		if err != nil {
			return err
		}
		patch.Name = stringFlag(cmd, "name")
		if s := stringFlag(cmd, "status"); s != nil {
			status := domain.ProjectStatus(*s)
			patch.Status = &status
		}

		project, err := appInstance.Projects.Update(cmd.Context(), id, patch)
		if err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		fmt.Printf("✓ Project updated: %s (%s)\n", project.Name, project.Status)
		return nil
	},
}

func projectPatchFromFlags(cmd *cobra.Command) (domain.ProjectPatch, error) {
	var (
		patch domain.ProjectPatch
		err   error
	)
	if patch.HourlyRate, err = nullableDecimalFlag(cmd, "rate"); err != nil {
		return patch, err
	}
	if patch.BudgetHours, err = nullableDecimalFlag(cmd, "budget-hours"); err != nil {
		return patch, err
	}
	if patch.BudgetAmount, err = nullableDecimalFlag(cmd, "budget-amount"); err != nil {
		return patch, err
	}
	patch.Description = stringFlag(cmd, "description")
	return patch, nil
}

func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().String("rate", "", "Project hourly rate, overrides the client rate")
	cmd.Flags().String("budget-hours", "", "Budgeted hours")
	cmd.Flags().String("budget-amount", "", "Budgeted amount")
	cmd.Flags().String("description", "", "Project description")
}

func init() {
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsAddCmd)
	projectsCmd.AddCommand(projectsEditCmd)

	projectsListCmd.Flags().Int64("client", 0, "Filter by client ID")
	projectsListCmd.Flags().String("status", "", "Filter by status (active, completed, on_hold, cancelled)")

	addProjectFlags(projectsAddCmd)

	projectsEditCmd.Flags().String("name", "", "New name")
	projectsEditCmd.Flags().String("status", "", "New status (active, completed, on_hold, cancelled)")
	addProjectFlags(projectsEditCmd)
}
