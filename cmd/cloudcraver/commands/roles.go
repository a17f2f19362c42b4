package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cloudcraver/cloudcraver/internal/rbac"
)

var roleAddPermissions []string

// rolesCmd represents the roles command group
var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Manage roles and user-role assignments",
}

func init() {
	rootCmd.AddCommand(rolesCmd)

	rolesAddCmd.Flags().StringArrayVar(&roleAddPermissions, "permission", nil, "Permission granted by the role (repeatable)")

	rolesCmd.AddCommand(rolesInitCmd)
	rolesCmd.AddCommand(rolesAddCmd)
	rolesCmd.AddCommand(rolesAssignCmd)
	rolesCmd.AddCommand(rolesRevokeCmd)
	rolesCmd.AddCommand(rolesListCmd)
	rolesCmd.AddCommand(rolesPermissionsCmd)
}

var rolesInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap RBAC by granting the current actor the Admin role",
	Long: `Assigns the Admin role to the current actor. On a fresh state this
needs no permission; once any assignment exists it requires roles:manage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := requireActor()
		if err != nil {
			return err
		}
		recorder := newRecorder()
		engine, err := newEngine(recorder)
		if err != nil {
			return err
		}
		if engine.HasAssignments() {
			if err := denyUnless(engine, recorder, actor, rbac.PermManageRoles); err != nil {
				return err
			}
		}
		if err := engine.AssignRole(actor, actor, rbac.RoleAdmin); err != nil {
			return err
		}
		if err := engine.SaveState(cfg.RBACStateFile); err != nil {
			return err
		}
		fmt.Printf("Admin role assigned to %q.\n", actor)
		return nil
	},
}

var rolesAddCmd = &cobra.Command{
	Use:   "add <role-name>",
	Short: "Register a new role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := requireActor()
		if err != nil {
			return err
		}
		recorder := newRecorder()
		engine, err := newEngine(recorder)
		if err != nil {
			return err
		}
		if err := denyUnless(engine, recorder, actor, rbac.PermManageRoles); err != nil {
			return err
		}
		if err := engine.AddRole(rbac.NewRole(args[0], roleAddPermissions...)); err != nil {
			return err
		}
		fmt.Printf("Role %q registered with %d permission(s).\n", args[0], len(roleAddPermissions))
		fmt.Println("Note: role definitions are configuration and are not persisted across invocations.")
		return nil
	},
}

var rolesAssignCmd = &cobra.Command{
	Use:   "assign <user-id> <role-name>",
	Short: "Assign a role to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := requireActor()
		if err != nil {
			return err
		}
		recorder := newRecorder()
		engine, err := newEngine(recorder)
		if err != nil {
			return err
		}
		if err := denyUnless(engine, recorder, actor, rbac.PermManageRoles); err != nil {
			return err
		}
		if err := engine.AssignRole(actor, args[0], args[1]); err != nil {
			return err
		}
		if err := engine.SaveState(cfg.RBACStateFile); err != nil {
			return err
		}
		fmt.Printf("Role %q assigned to user %q.\n", args[1], args[0])
		return nil
	},
}

var rolesRevokeCmd = &cobra.Command{
	Use:   "revoke <user-id> <role-name>",
	Short: "Remove a role from a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := requireActor()
		if err != nil {
			return err
		}
		recorder := newRecorder()
		engine, err := newEngine(recorder)
		if err != nil {
			return err
		}
		if err := denyUnless(engine, recorder, actor, rbac.PermManageRoles); err != nil {
			return err
		}
		engine.RemoveRole(actor, args[0], args[1])
		if err := engine.SaveState(cfg.RBACStateFile); err != nil {
			return err
		}
		fmt.Printf("Role %q removed from user %q.\n", args[1], args[0])
		return nil
	},
}

var rolesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered roles and their permissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine(newRecorder())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ROLE\tPERMISSIONS")
		for _, role := range engine.Roles() {
			fmt.Fprintf(w, "%s\t%s\n", role.Name, strings.Join(role.PermissionList(), ", "))
		}
		return w.Flush()
	},
}

var rolesPermissionsCmd = &cobra.Command{
	Use:   "permissions <user-id>",
	Short: "Show the effective permissions of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := requireActor()
		if err != nil {
			return err
		}
		recorder := newRecorder()
		engine, err := newEngine(recorder)
		if err != nil {
			return err
		}
		if err := denyUnless(engine, recorder, actor, rbac.PermManageUsers); err != nil {
			return err
		}
		perms := engine.UserPermissions(args[0])
		if len(perms) == 0 {
			fmt.Printf("User %q has no assigned permissions.\n", args[0])
			return nil
		}
		fmt.Printf("Permissions for user %q:\n", args[0])
		for _, p := range perms {
			fmt.Printf("  - %s\n", p)
		}
		return nil
	},
}
