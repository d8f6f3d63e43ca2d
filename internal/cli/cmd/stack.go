package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"procpilot/pkg/sdk"
)

var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Manage server stacks",
}

var stackMembers string

var stackCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a stack",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		stack := sdk.Stack{
			Name:    args[0],
			Members: splitMembers(stackMembers),
		}
		if err := Client.CreateStack(stack); err != nil {
			log.Fatalf("Error creating stack: %v", err)
		}
		fmt.Printf("Stack %s created.\n", args[0])
	},
}

var stackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stacks",
	Run: func(cmd *cobra.Command, args []string) {
		stacks, err := Client.ListStacks()
		if err != nil {
			log.Fatalf("Error listing stacks: %v", err)
		}

		fmt.Println("Stacks:")
		for _, stack := range stacks {
			status := ""
			if s, err := Client.GetStackStatus(stack.Name); err == nil {
				status = fmt.Sprintf(" [%s]", s.Status)
			}
			fmt.Printf("- %s%s: %s\n", stack.Name, status, strings.Join(stack.Members, ", "))
		}
	},
}

var stackStartCmd = &cobra.Command{
	Use:   "start [name]",
	Short: "Start every server in a stack",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		results, err := Client.StartStack(args[0])
		if err != nil {
			log.Fatalf("Error starting stack: %v", err)
		}
		printStackResults(results)
	},
}

var stackStopCmd = &cobra.Command{
	Use:   "stop [name]",
	Short: "Stop every server in a stack",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		results, err := Client.StopStack(args[0])
		if err != nil {
			log.Fatalf("Error stopping stack: %v", err)
		}
		printStackResults(results)
	},
}

var stackUpdateCmd = &cobra.Command{
	Use:   "update [name]",
	Short: "Replace a stack's member list",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := Client.UpdateStack(args[0], splitMembers(stackMembers)); err != nil {
			log.Fatalf("Error updating stack: %v", err)
		}
		fmt.Printf("Stack %s updated.\n", args[0])
	},
}

var stackDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a stack (servers are kept)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := Client.DeleteStack(args[0]); err != nil {
			log.Fatalf("Error deleting stack: %v", err)
		}
		fmt.Printf("Stack %s deleted.\n", args[0])
	},
}

func init() {
	stackCreateCmd.Flags().StringVar(&stackMembers, "members", "", "Comma separated server names")
	stackUpdateCmd.Flags().StringVar(&stackMembers, "members", "", "Comma separated server names")
	stackUpdateCmd.MarkFlagRequired("members")

	stackCmd.AddCommand(stackCreateCmd, stackListCmd, stackStartCmd, stackStopCmd,
		stackUpdateCmd, stackDeleteCmd)
	RootCmd.AddCommand(stackCmd)
}

func splitMembers(raw string) []string {
	var members []string
	for _, member := range strings.Split(raw, ",") {
		member = strings.TrimSpace(member)
		if member != "" {
			members = append(members, member)
		}
	}
	return members
}

func printStackResults(results map[string]string) {
	for member, result := range results {
		fmt.Printf("- %s: %s\n", member, result)
	}
}
