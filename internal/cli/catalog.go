package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/models"
)

func newGroupCmd(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups",
	}

	var name string
	var members []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open()
			if err != nil {
				return err
			}
			defer a.Close()

			group := &models.Group{Name: name, Members: members}
			if err := a.Store.CreateGroup(cmd.Context(), group); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), group.ID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "group name")
	create.Flags().StringSliceVarP(&members, "member", "m", nil, "member account (repeatable)")
	_ = create.MarkFlagRequired("name")

	var added []string
	addMembers := &cobra.Command{
		Use:   "add-members GROUP_ID",
		Short: "Add members to a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(added) == 0 {
				return fmt.Errorf("at least one --member is required")
			}
			a, err := s.open()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Store.AddGroupMembers(cmd.Context(), args[0], added); err != nil {
				return err
			}
			group, err := a.Store.GetGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(group.Members, ","))
			return nil
		},
	}
	addMembers.Flags().StringSliceVarP(&added, "member", "m", nil, "member account (repeatable)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open()
			if err != nil {
				return err
			}
			defer a.Close()

			groups, err := a.Store.ListGroups(cmd.Context())
			if err != nil {
				return err
			}
			for _, g := range groups {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", g.ID, g.Name, strings.Join(g.Members, ","))
			}
			return nil
		},
	}

	cmd.AddCommand(create, addMembers, list)
	return cmd
}

func newBillCmd(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bill",
		Short: "Manage bills",
	}

	var groupID, title string
	var total int64
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a bill for a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if total <= 0 {
				return fmt.Errorf("--total must be positive")
			}
			a, err := s.open()
			if err != nil {
				return err
			}
			defer a.Close()

			bill := &models.Bill{GroupID: groupID, Title: title, TotalAmount: total}
			if err := a.Store.CreateBill(cmd.Context(), bill); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), bill.ID)
			return nil
		},
	}
	create.Flags().StringVar(&groupID, "group", "", "group ID")
	create.Flags().StringVar(&title, "title", "", "bill title (generated when empty)")
	create.Flags().Int64Var(&total, "total", 0, "bill total in tokens")
	_ = create.MarkFlagRequired("group")

	cmd.AddCommand(create)
	return cmd
}
