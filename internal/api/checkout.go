package api

import (
	"context"
	"errors"
	"fmt"

	"tour-booking-system/internal/models"
	"tour-booking-system/internal/temporal/workflows"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
)

// TaskQueue is the worker queue for checkout workflows
const TaskQueue = "checkout-task-queue"

// CheckoutClient submits booking drafts through the checkout workflow and
// waits for the outcome. It implements wizard.Submitter.
type CheckoutClient struct {
	Temporal client.Client
}

func NewCheckoutClient(temporalClient client.Client) *CheckoutClient {
	return &CheckoutClient{Temporal: temporalClient}
}

func (c *CheckoutClient) Submit(ctx context.Context, input models.CheckoutInput) (models.CheckoutResult, error) {
	workflowOptions := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("checkout-%s-%s", input.SessionID, uuid.New().String()[:8]),
		TaskQueue: TaskQueue,
	}

	we, err := c.Temporal.ExecuteWorkflow(ctx, workflowOptions, workflows.CheckoutWorkflow, input)
	if err != nil {
		return models.CheckoutResult{}, fmt.Errorf("failed to start checkout: %w", err)
	}

	var result models.CheckoutResult
	if err := we.Get(ctx, &result); err != nil {
		return models.CheckoutResult{}, fmt.Errorf("checkout failed: %w", err)
	}

	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "checkout failed"
		}
		return result, errors.New(msg)
	}

	return result, nil
}
