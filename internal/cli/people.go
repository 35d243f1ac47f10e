package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andy/timeledger/internal/domain"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage consultants and administrators",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := appInstance.People.ListUsers(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		fmt.Printf("%-5s %-25s %-30s %-12s %-8s\n", "ID", "Name", "Email", "Role", "Active")
		fmt.Println("----------------------------------------------------------------------------------")
		for _, u := range users {
			marker := ""
			if appInstance.User != nil && u.ID == appInstance.User.ID {
				marker = " *"
			}
			fmt.Printf("%-5d %-25s %-30s %-12s %-8t%s\n",
				u.ID,
				truncate(u.Name, 25),
				truncate(u.Email, 30),
				u.Role,
				u.IsActive,
				marker,
			)
		}
		return nil
	},
}

var usersAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		role, _ := cmd.Flags().GetString("role")

		user, err := appInstance.People.CreateUser(cmd.Context(), args[0], email, domain.Role(role))
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Printf("✓ User created: %s (ID: %d, %s)\n", user.Name, user.ID, user.Role)
		return nil
	},
}

var subcontractorsCmd = &cobra.Command{
	Use:     "subcontractors",
	Aliases: []string{"subs"},
	Short:   "Manage subcontractors",
}

var subcontractorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subcontractors",
	RunE: func(cmd *cobra.Command, args []string) error {
		includeInactive, _ := cmd.Flags().GetBool("inactive")

		subs, err := appInstance.People.ListSubcontractors(cmd.Context(), includeInactive)
		if err != nil {
			return fmt.Errorf("failed to list subcontractors: %w", err)
		}

		if len(subs) == 0 {
			fmt.Println("No subcontractors found")
			return nil
		}

		fmt.Printf("%-5s %-25s %-25s %-12s %-8s\n", "ID", "Name", "Company", "Rate", "Active")
		fmt.Println("------------------------------------------------------------------------------")
		for _, s := range subs {
			fmt.Printf("%-5d %-25s %-25s %-12s %-8t\n",
				s.ID,
				truncate(s.Name, 25),
				truncate(s.Company, 25),
				optionalMoney(s.HourlyRate),
				s.IsActive,
			)
		}
		return nil
	},
}

var subcontractorsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a subcontractor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := subcontractorPatchFromFlags(cmd)
		if err != nil {
			return err
		}

		sub := &domain.Subcontractor{Name: args[0]}
		sub.Apply(patch)
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("invalid subcontractor: %w", err)
		}

		if err := appInstance.People.CreateSubcontractor(cmd.Context(), sub); err != nil {
			return fmt.Errorf("failed to create subcontractor: %w", err)
		}

		fmt.Printf("✓ Subcontractor created: %s (ID: %d)\n", sub.Name, sub.ID)
		return nil
	},
}

var subcontractorsEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit a subcontractor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("subcontractor", args[0])
		if err != nil {
			return err
		}

		patch, err := subcontractorPatchFromFlags(cmd)
		if err != nil {
			return err
		}
		patch.Name = stringFlag(cmd, "name")

		sub, err := appInstance.People.UpdateSubcontractor(cmd.Context(), id, patch)
		if err != nil {
			return fmt.Errorf("failed to update subcontractor: %w", err)
		}

		fmt.Printf("✓ Subcontractor updated: %s\n", sub.Name)
		return nil
	},
}

var subcontractorsDeactivateCmd = &cobra.Command{
	Use:   "deactivate [id]",
	Short: "Deactivate a subcontractor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("subcontractor", args[0])
		if err != nil {
			return err
		}

		if err := appInstance.People.DeactivateSubcontractor(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to deactivate subcontractor: %w", err)
		}

		fmt.Printf("✓ Subcontractor deactivated (ID: %d)\n", id)
		return nil
	},
}

func subcontractorPatchFromFlags(cmd *cobra.Command) (domain.SubcontractorPatch, error) {
	rate, err := nullableDecimalFlag(cmd, "rate")
	if err != nil {
		return domain.SubcontractorPatch{}, err
	}
	return domain.SubcontractorPatch{
		Email:      stringFlag(cmd, "email"),
		Phone:      stringFlag(cmd, "phone"),
		Company:    stringFlag(cmd, "company"),
		HourlyRate: rate,
	}, nil
}

func addSubcontractorFlags(cmd *cobra.Command) {
	cmd.Flags().String("email", "", "Email address")
	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().String("company", "", "Company name")
	cmd.Flags().String("rate", "", "Hourly rate")
}

func init() {
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)

	usersAddCmd.Flags().String("email", "", "Email address")
	usersAddCmd.Flags().String("role", string(domain.RoleConsultant), "Role (admin or consultant)")

	subcontractorsCmd.AddCommand(subcontractorsListCmd)
	subcontractorsCmd.AddCommand(subcontractorsAddCmd)
	subcontractorsCmd.AddCommand(subcontractorsEditCmd)
	subcontractorsCmd.AddCommand(subcontractorsDeactivateCmd)

	subcontractorsListCmd.Flags().Bool("inactive", false, "Include inactive subcontractors")

	addSubcontractorFlags(subcontractorsAddCmd)

	subcontractorsEditCmd.Flags().String("name", "", "New name")
	addSubcontractorFlags(subcontractorsEditCmd)
}
