// internal/service/settlement/executor.go
package settlement

import (
	"context"
	"time"

	"autopay-service/internal/domain/payment"

	"github.com/oklog/ulid/v2"
)

// LocalExecutor settles payments instantly without moving real funds. It
// backs development and single-node setups; production deployments inject
// their own PaymentExecutor at construction.
type LocalExecutor struct{}

func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{}
}

func (e *LocalExecutor) InitiatePayment(ctx context.Context, channel string, provisional *payment.Receipt) (*payment.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	receipt := *provisional
	receipt.Channel = channel
	receipt.ProviderRef = "local-" + ulid.Make().String()
	receipt.SettledAt = time.Now()
	return &receipt, nil
}
