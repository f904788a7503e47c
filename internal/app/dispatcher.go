// internal/app/dispatcher.go
package app

import (
	"context"
	"encoding/json"
	"errors"

	"autopay-service/internal/domain/payment"
	agreementsvc "autopay-service/internal/service/agreement"
	settlementsvc "autopay-service/internal/service/settlement"
	"autopay-service/internal/transport"

	"go.uber.org/zap"
)

// Dispatcher drains the peer transport and routes each frame to the service
// that owns its message type. Frames that fail to decode or to process are
// logged and dropped; the loop only stops when the context is cancelled.
type Dispatcher struct {
	tp         transport.Transport
	agreements *agreementsvc.AgreementService
	settlement *settlementsvc.SettlementService
	logger     *zap.Logger
}

func NewDispatcher(
	tp transport.Transport,
	agreements *agreementsvc.AgreementService,
	settlement *settlementsvc.SettlementService,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		tp:         tp,
		agreements: agreements,
		settlement: settlement,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		msg, err := d.tp.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			d.logger.Error("transport receive failed", zap.Error(err))
			return
		}
		if err := d.dispatch(ctx, msg); err != nil {
			d.logger.Warn("inbound message rejected",
				zap.String("type", string(msg.Type)),
				zap.String("from", msg.From),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, msg transport.Message) error {
	switch msg.Type {
	case transport.MsgProposal:
		var prop agreementsvc.Proposal
		if err := json.Unmarshal(msg.Payload, &prop); err != nil {
			return err
		}
		_, err := d.agreements.HandleProposal(ctx, &prop)
		return err

	case transport.MsgAcceptance:
		var acc agreementsvc.Acceptance
		if err := json.Unmarshal(msg.Payload, &acc); err != nil {
			return err
		}
		_, err := d.agreements.HandleAcceptance(ctx, &acc)
		return err

	case transport.MsgPaymentRequest:
		var input payment.CreateRequestInput
		if err := json.Unmarshal(msg.Payload, &input); err != nil {
			return err
		}
		_, err := d.settlement.CreateRequest(ctx, &input)
		return err

	default:
		d.logger.Warn("unknown message type", zap.String("type", string(msg.Type)))
		return nil
	}
}
