package events

import (
	"time"
)

// WorkflowEvent is a lifecycle event for one transaction workflow, published
// to the subject "workflows.{kind}". The UI layer can subscribe to drive
// progress display instead of polling.
type WorkflowEvent struct {
	// Kind is the operation kind: create_mint, mint_to, transfer.
	Kind string `json:"kind"`

	// State is the workflow state reached: built, partially_signed,
	// wallet_signed, submitted, confirmed, failed, timed_out.
	State string `json:"state"`

	// Signature is set once the transaction has been submitted.
	Signature string `json:"signature,omitempty"`

	// Reason carries the failure reason for terminal failure states.
	Reason string `json:"reason,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}
