package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/opskit/pkg/opskit"
)

// NewOpsCommand creates the ops command group
func NewOpsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ops",
		Aliases: []string{"op", "operations"},
		Short:   "Manage long-running operations",
		Long:    "Start, watch, resume, and cancel long-running operations",
	}

	cmd.AddCommand(newOpsStartCommand())
	cmd.AddCommand(newOpsGetCommand())
	cmd.AddCommand(newOpsWaitCommand())
	cmd.AddCommand(newOpsCancelCommand())
	cmd.AddCommand(newOpsResumeCommand())

	return cmd
}

func newOpsStartCommand() *cobra.Command {
	var inputFile string

	cmd := &cobra.Command{
		Use:   "start KIND",
		Short: "Start an operation",
		Long:  "Start a long-running operation of the given kind and print its handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient()
			if err != nil {
				return err
			}

			var input json.RawMessage
			if inputFile != "" {
				data, err := os.ReadFile(inputFile)
				if err != nil {
					return fmt.Errorf("reading input file: %w", err)
				}

				input = data
			}

			ctx := context.Background()

			op, err := client.Poller().Start(ctx, &opskit.OperationRequest{
				Kind:  args[0],
				Input: input,
			})
			if err != nil {
				return fmt.Errorf("failed to start operation: %w", err)
			}

			return renderOperation(op)
		},
	}

	cmd.Flags().StringVarP(&inputFile, "input", "f", "", "JSON file with the operation input")

	return cmd
}

func newOpsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get OPERATION_ID",
		Short: "Get operation status",
		Long:  "Issue a single status check against an operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			// A fresh handle in the pre-poll state; one poll observes
			// the live status.
			op := &opskit.Operation{ID: args[0], Status: opskit.StatusPending}

			op, err = client.Poller().Poll(ctx, op)
			if err != nil {
				return fmt.Errorf("failed to poll operation: %w", err)
			}

			return renderOperation(op)
		},
	}
}

func newOpsWaitCommand() *cobra.Command {
	var (
		interval time.Duration
		timeout  time.Duration
		storeKey string
	)

	cmd := &cobra.Command{
		Use:   "wait OPERATION_ID",
		Short: "Wait for an operation to complete",
		Long:  "Poll an operation until it completes, fails, is canceled, or the timeout elapses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			op := &opskit.Operation{ID: args[0], Status: opskit.StatusPending}

			op, waitErr := client.Poller().Wait(ctx, op, &opskit.WaitOptions{
				Interval: interval,
				Timeout:  timeout,
			})

			// Persist the handle on timeout so the wait can be picked up
			// later with ops resume.
			if storeKey != "" && waitErr != nil && errors.Is(waitErr, opskit.ErrWaitTimeout) {
				token, tokenErr := op.ResumeToken()
				if tokenErr == nil {
					store, storeErr := createStore()
					if storeErr == nil {
						_ = store.Set(ctx, storeKey, token)
						fmt.Fprintf(os.Stderr, "Saved resume token under %q\n", storeKey)
					}
				}
			}

			if waitErr != nil {
				return fmt.Errorf("failed to wait for operation: %w", waitErr)
			}

			return renderOperation(op)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "polling interval (default exponential backoff)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "polling timeout")
	cmd.Flags().StringVar(&storeKey, "store-key", "", "save a resume token under this key on timeout")

	return cmd
}

func newOpsCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel OPERATION_ID",
		Short: "Cancel an operation",
		Long:  "Request cancellation of a running operation (best effort)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			op := &opskit.Operation{ID: args[0], Status: opskit.StatusPending}

			op, err = client.Poller().Cancel(ctx, op)
			if err != nil {
				return fmt.Errorf("failed to cancel operation: %w", err)
			}

			return renderOperation(op)
		},
	}
}

func newOpsResumeCommand() *cobra.Command {
	var (
		storeKey string
		wait     bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "resume [RESUME_TOKEN]",
		Short: "Resume a saved operation handle",
		Long:  "Reconstruct an operation handle from a resume token and check its live status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			var token string

			switch {
			case len(args) == 1:
				token = args[0]
			case storeKey != "":
				store, err := createStore()
				if err != nil {
					return err
				}

				token, err = store.Get(ctx, storeKey)
				if err != nil {
					return fmt.Errorf("loading resume token: %w", err)
				}
			default:
				return ErrTokenOrStoreKey
			}

			op, err := client.Poller().Resume(token)
			if err != nil {
				return fmt.Errorf("failed to resume operation: %w", err)
			}

			if wait {
				op, err = client.Poller().Wait(ctx, op, &opskit.WaitOptions{Timeout: timeout})
			} else {
				op, err = client.Poller().Poll(ctx, op)
			}

			if err != nil {
				return fmt.Errorf("failed to poll resumed operation: %w", err)
			}

			return renderOperation(op)
		},
	}

	cmd.Flags().StringVar(&storeKey, "store-key", "", "load the resume token from this store key")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for completion after resuming")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "polling timeout when --wait is set")

	return cmd
}
