package conversation

import (
	"context"

	"github.com/kamafile/onboarding-bridge/internal/onboarding"
)

// Transport issues the controller's network calls. The controller treats it
// as an opaque asynchronous boundary: success or failure, nothing in between.
// Timeouts and auth handling belong to the implementation, not to the
// controller.
type Transport interface {
	StartSession(ctx context.Context, req onboarding.StartRequest) (*onboarding.StepResponse, error)
	SubmitStep(ctx context.Context, req onboarding.StepRequest) (*onboarding.StepResponse, error)
}
