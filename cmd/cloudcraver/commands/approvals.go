package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudcraver/cloudcraver/internal/approval"
	"github.com/cloudcraver/cloudcraver/internal/rbac"
)

var (
	requestSummary  string
	requestDetails  string
	decisionComment string
	listAll         bool
)

// approvalsCmd represents the approvals command group
var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Manage change-approval requests",
}

func init() {
	rootCmd.AddCommand(approvalsCmd)

	approvalsRequestCmd.Flags().StringVar(&requestSummary, "summary", "", "Summary of the change")
	approvalsRequestCmd.Flags().StringVar(&requestDetails, "details", "", "Detailed description of the change")
	approvalsRequestCmd.MarkFlagRequired("summary")

	approvalsApproveCmd.Flags().StringVar(&decisionComment, "comment", "", "Optional comment")
	approvalsRejectCmd.Flags().StringVar(&decisionComment, "comment", "", "Optional comment")
	approvalsCancelCmd.Flags().StringVar(&decisionComment, "comment", "", "Optional comment")

	approvalsListCmd.Flags().BoolVar(&listAll, "all", false, "Include decided requests")

	approvalsCmd.AddCommand(approvalsRequestCmd)
	approvalsCmd.AddCommand(approvalsApproveCmd)
	approvalsCmd.AddCommand(approvalsRejectCmd)
	approvalsCmd.AddCommand(approvalsCancelCmd)
	approvalsCmd.AddCommand(approvalsListCmd)
}

var approvalsRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Request approval for an infrastructure change",
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
		if err := denyUnless(engine, recorder, actor, rbac.PermCreateInfra); err != nil {
			return err
		}
		workflow, err := newWorkflow(engine, recorder)
		if err != nil {
			return err
		}

		req := approval.NewRequest(actor, requestSummary, map[string]any{"description": requestDetails})
		if cfg.ApproverRole != "" {
			req.ApproverRole = cfg.ApproverRole
		}
		if err := workflow.CreateRequest(req); err != nil {
			return err
		}
		fmt.Printf("Approval request %q created.\n", req.ID)
		return nil
	},
}

var approvalsApproveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve a pending request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(args[0], "approved", func(w *approval.Workflow, id, actor string) error {
			return w.ApproveRequest(id, actor, decisionComment)
		})
	},
}

var approvalsRejectCmd = &cobra.Command{
	Use:   "reject <request-id>",
	Short: "Reject a pending request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(args[0], "rejected", func(w *approval.Workflow, id, actor string) error {
			return w.RejectRequest(id, actor, decisionComment)
		})
	},
}

var approvalsCancelCmd = &cobra.Command{
	Use:   "cancel <request-id>",
	Short: "Cancel a pending request",
	Long:  `Cancels a pending request. Only the original requester or an actor with system:admin may cancel.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(args[0], "cancelled", func(w *approval.Workflow, id, actor string) error {
			return w.CancelRequest(id, actor, decisionComment)
		})
	},
}

func decide(requestID, verb string, fn func(w *approval.Workflow, id, actor string) error) error {
	actor, err := requireActor()
	if err != nil {
		return err
	}
	recorder := newRecorder()
	engine, err := newEngine(recorder)
	if err != nil {
		return err
	}
	workflow, err := newWorkflow(engine, recorder)
	if err != nil {
		return err
	}
	if err := fn(workflow, requestID, actor); err != nil {
		return err
	}
	fmt.Printf("Approval request %q %s.\n", requestID, verb)
	return nil
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List approval requests",
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
		if err := denyUnless(engine, recorder, actor, rbac.PermApproveChanges); err != nil {
			return err
		}
		workflow, err := newWorkflow(engine, recorder)
		if err != nil {
			return err
		}

		requests := workflow.ListPendingRequests()
		if listAll {
			requests = workflow.ListRequests()
		}
		if len(requests) == 0 {
			fmt.Println("No approval requests found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tREQUESTER\tSTATUS\tSUMMARY\tCREATED")
		for _, req := range requests {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				req.ID, req.RequesterID, req.Status, req.ChangeSummary,
				req.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}
