package engine

import (
	"context"
	"encoding/json"

	"github.com/casperlink/intent-engine/pkg/deploy"
)

// Wallet account event names, as emitted by the wallet provider.
const (
	EventSignedIn        = "signed_in"
	EventSwitchedAccount = "switched_account"
	EventSignedOut       = "signed_out"
)

// Wallet abstracts the external signer. Send submits an unsigned execution
// request for signing and returns the resulting transaction hash.
// Implementations report a user decline as ErrWalletCancelled; any other
// error means the submission failed. Neither case is retried here.
type Wallet interface {
	Send(ctx context.Context, request json.RawMessage, account string) (string, error)
}

// RequestBuilder assembles unsigned execution payloads. The engine treats
// the payloads as opaque blobs.
type RequestBuilder interface {
	CreateIntentDeploy(p deploy.Params) (json.RawMessage, error)
	ExecuteIntentDeploy(intentID string, p deploy.Params) (json.RawMessage, error)
	ExecuteWithTransferDeploy(intentID string, p deploy.Params) (json.RawMessage, error)
	VenueSwapDeploy(p deploy.Params) (json.RawMessage, error)
}
