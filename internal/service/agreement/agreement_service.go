// internal/service/agreement/agreement_service.go
package agreement

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"autopay-service/internal/domain/subscription"
	"autopay-service/internal/nonce"
	xerrors "autopay-service/internal/pkg/errors"
	"autopay-service/internal/pkg/signing"
	"autopay-service/internal/transport"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// SignatureTTL bounds how long a proposal signature stays acceptable.
const SignatureTTL = 7 * 24 * time.Hour

// Proposal travels to the counterparty when an agreement is proposed.
type Proposal struct {
	Subscription subscription.Subscription `json:"subscription"`
	ProposerSig  subscription.Signature    `json:"proposer_sig"`
}

// Acceptance travels back once the counterparty has countersigned.
type Acceptance struct {
	Signed subscription.SignedSubscription `json:"signed"`
}

// EventPublisher pushes protocol events to connected UIs.
type EventPublisher interface {
	Publish(event string, payload any)
}

// AgreementService builds, signs, verifies and persists two-party
// subscription agreements. Verification failures are terminal for the
// attempt; the protocol never persists a partially verified agreement.
type AgreementService struct {
	subRepo    subscription.Repository
	signedRepo subscription.SignedRepository
	ledger     nonce.Ledger
	tp         transport.Transport
	keys       *signing.KeyPair
	events     EventPublisher
	logger     *zap.Logger
}

func NewAgreementService(
	subRepo subscription.Repository,
	signedRepo subscription.SignedRepository,
	ledger nonce.Ledger,
	tp transport.Transport,
	keys *signing.KeyPair,
	events EventPublisher,
	logger *zap.Logger,
) *AgreementService {
	return &AgreementService{
		subRepo:    subRepo,
		signedRepo: signedRepo,
		ledger:     ledger,
		tp:         tp,
		keys:       keys,
		events:     events,
		logger:     logger,
	}
}

// Propose validates the terms, persists the subscription as pending, signs
// canonical(terms) || nonce and hands the proposal to the transport. The
// pending record survives a send failure, so the caller may retry sending
// through Resend without producing a second signature.
func (s *AgreementService) Propose(ctx context.Context, req *subscription.ProposeRequest) (*subscription.Subscription, error) {
	if err := req.Terms.Validate(); err != nil {
		return nil, err
	}
	if _, err := signing.ParsePublicKey(req.ProviderKey); err != nil {
		return nil, err
	}

	startsAt := req.StartsAt
	if startsAt.IsZero() {
		startsAt = time.Now()
	}

	sub := &subscription.Subscription{
		ID:            ulid.Make().String(),
		SubscriberKey: s.keys.PublicKeyHex(),
		ProviderKey:   req.ProviderKey,
		Terms:         req.Terms,
		StartsAt:      startsAt,
		EndsAt:        req.EndsAt,
		Status:        subscription.StatusPending,
		Version:       1,
		Metadata:      req.Metadata,
	}

	sig, err := s.sign(ctx, sub.Terms)
	if err != nil {
		return nil, err
	}
	sub.ProposerSig = sig

	// Persist before sending: a failed send must not lose the proposal.
	if err := s.subRepo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to persist pending subscription: %w", err)
	}

	if err := s.sendProposal(ctx, sub); err != nil {
		s.logger.Warn("proposal send failed, pending record kept",
			zap.String("subscription_id", sub.ID), zap.Error(err))
		return sub, err
	}
	return sub, nil
}

// Resend re-transmits a pending proposal using the signature produced at
// propose time.
func (s *AgreementService) Resend(ctx context.Context, subscriptionID string) error {
	sub, err := s.subRepo.Get(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Status != subscription.StatusPending || sub.ProposerSig == nil {
		return xerrors.Wrap(xerrors.ErrInvalidArgument, "subscription is not a pending proposal")
	}
	return s.sendProposal(ctx, sub)
}

// HandleProposal persists a proposal received from a counterparty so the
// local party can later accept it. The proposer's signature is not consumed
// here; Accept does the verification and nonce bookkeeping.
func (s *AgreementService) HandleProposal(ctx context.Context, prop *Proposal) (*subscription.Subscription, error) {
	sub := prop.Subscription
	if err := sub.Terms.Validate(); err != nil {
		return nil, err
	}
	sub.Status = subscription.StatusPending
	sig := prop.ProposerSig
	sub.ProposerSig = &sig
	if err := s.subRepo.Save(ctx, &sub); err != nil {
		return nil, fmt.Errorf("failed to persist received proposal: %w", err)
	}
	return &sub, nil
}

// Accept verifies the proposer's signature, consumes the proposer's nonce,
// countersigns and persists the agreement as active. The signature is
// verified before the nonce is consumed, so a forged signature cannot burn
// a live nonce; a consumed or expired nonce fails even when the signature
// bytes are cryptographically valid.
func (s *AgreementService) Accept(ctx context.Context, subscriptionID string, proposerSig *subscription.Signature) (*subscription.SignedSubscription, error) {
	sub, err := s.subRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != subscription.StatusPending {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "subscription is not pending acceptance")
	}
	if err := sub.Terms.Validate(); err != nil {
		return nil, err
	}

	self := s.keys.PublicKeyHex()
	proposerKey := sub.SubscriberKey
	if proposerKey == self {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "cannot accept own proposal")
	}
	if proposerSig.SignerKey != proposerKey {
		return nil, xerrors.ErrSignatureInvalid
	}

	if err := s.verify(sub.Terms, proposerSig); err != nil {
		return nil, err
	}
	// Only now touch the ledger. ReplayDetected and Expired surface to the
	// counterparty identically to a signature failure; the sentinel is kept
	// distinct for local diagnostics.
	if err := s.ledger.CheckAndMark(ctx, proposerSig.SignerKey, proposerSig.Nonce, proposerSig.ExpiresAt); err != nil {
		s.logger.Warn("proposer nonce rejected",
			zap.String("subscription_id", sub.ID), zap.Error(err))
		return nil, err
	}

	ownSig, err := s.sign(ctx, sub.Terms)
	if err != nil {
		return nil, err
	}

	sub.Status = subscription.StatusActive
	sub.ProposerSig = nil
	signed := &subscription.SignedSubscription{
		Subscription:  *sub,
		SubscriberSig: *proposerSig,
		ProviderSig:   *ownSig,
		ActivatedAt:   time.Now(),
	}

	// Defense in depth: both signatures must verify together against the
	// same terms before anything persists.
	if err := s.verify(sub.Terms, &signed.SubscriberSig); err != nil {
		return nil, err
	}
	if err := s.verify(sub.Terms, &signed.ProviderSig); err != nil {
		return nil, err
	}

	if err := s.signedRepo.Save(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to persist signed subscription: %w", err)
	}
	if err := s.subRepo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update subscription status: %w", err)
	}

	if s.events != nil {
		s.events.Publish("agreement.signed", signed)
	}

	if err := s.sendAcceptance(ctx, signed); err != nil {
		s.logger.Warn("acceptance send failed, agreement persisted",
			zap.String("subscription_id", sub.ID), zap.Error(err))
		return signed, err
	}
	return signed, nil
}

// HandleAcceptance is the proposer-side mirror of Accept, invoked when the
// counterparty's acceptance arrives asynchronously. Both signatures are
// verified against the locally stored terms, never against terms supplied
// on the wire, and the acceptor's nonce is consumed before anything
// persists. The proposer's own nonce was consumed at propose time and is
// only checked for identity here.
func (s *AgreementService) HandleAcceptance(ctx context.Context, acc *Acceptance) (*subscription.SignedSubscription, error) {
	local, err := s.subRepo.Get(ctx, acc.Signed.Subscription.ID)
	if err != nil {
		return nil, err
	}
	if local.Status != subscription.StatusPending {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "no pending proposal for this acceptance")
	}

	self := s.keys.PublicKeyHex()
	if local.SubscriberKey != self {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "acceptance for a proposal we did not make")
	}

	signed := acc.Signed
	if signed.SubscriberSig.SignerKey != self ||
		signed.ProviderSig.SignerKey != local.ProviderKey {
		return nil, xerrors.ErrSignatureInvalid
	}
	if local.ProposerSig == nil || !bytes.Equal(signed.SubscriberSig.Nonce, local.ProposerSig.Nonce) {
		return nil, xerrors.ErrSignatureInvalid
	}

	if err := s.verify(local.Terms, &signed.SubscriberSig); err != nil {
		return nil, err
	}
	if err := s.verify(local.Terms, &signed.ProviderSig); err != nil {
		return nil, err
	}
	if err := s.ledger.CheckAndMark(ctx, signed.ProviderSig.SignerKey, signed.ProviderSig.Nonce, signed.ProviderSig.ExpiresAt); err != nil {
		s.logger.Warn("acceptor nonce rejected",
			zap.String("subscription_id", local.ID), zap.Error(err))
		return nil, err
	}

	local.Status = subscription.StatusActive
	local.ProposerSig = nil
	signed.Subscription = *local

	if err := s.signedRepo.Save(ctx, &signed); err != nil {
		return nil, fmt.Errorf("failed to persist signed subscription: %w", err)
	}
	if err := s.subRepo.Save(ctx, local); err != nil {
		return nil, fmt.Errorf("failed to update subscription status: %w", err)
	}

	if s.events != nil {
		s.events.Publish("agreement.signed", &signed)
	}
	return &signed, nil
}

// Get returns a subscription by id.
func (s *AgreementService) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.subRepo.Get(ctx, id)
}

// List returns subscriptions matching the filters.
func (s *AgreementService) List(ctx context.Context, filters subscription.ListFilters) ([]*subscription.Subscription, error) {
	return s.subRepo.List(ctx, filters)
}

// GetSigned returns a signed agreement by subscription id.
func (s *AgreementService) GetSigned(ctx context.Context, id string) (*subscription.SignedSubscription, error) {
	return s.signedRepo.Get(ctx, id)
}

func (s *AgreementService) sign(ctx context.Context, terms subscription.Terms) (*subscription.Signature, error) {
	digest, err := signing.CanonicalDigest(terms)
	if err != nil {
		return nil, err
	}
	n, err := signing.NewNonce()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().Add(SignatureTTL)

	// Registering our own nonce can only collide if 256 random bits repeat.
	if err := s.ledger.CheckAndMark(ctx, s.keys.PublicKeyHex(), n, expiresAt); err != nil {
		return nil, err
	}

	return &subscription.Signature{
		SignerKey: s.keys.PublicKeyHex(),
		Signature: signing.Sign(s.keys.Private, digest, n),
		Nonce:     n,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AgreementService) verify(terms subscription.Terms, sig *subscription.Signature) error {
	pub, err := signing.ParsePublicKey(sig.SignerKey)
	if err != nil {
		return xerrors.ErrSignatureInvalid
	}
	digest, err := signing.CanonicalDigest(terms)
	if err != nil {
		return err
	}
	return signing.Verify(pub, digest, sig.Nonce, sig.Signature)
}

func (s *AgreementService) sendProposal(ctx context.Context, sub *subscription.Subscription) error {
	msg, err := transport.NewMessage(transport.MsgProposal, sub.SubscriberKey, sub.ProviderKey, &Proposal{
		Subscription: *sub,
		ProposerSig:  *sub.ProposerSig,
	})
	if err != nil {
		return err
	}
	return s.tp.Send(ctx, msg)
}

func (s *AgreementService) sendAcceptance(ctx context.Context, signed *subscription.SignedSubscription) error {
	self := s.keys.PublicKeyHex()
	msg, err := transport.NewMessage(transport.MsgAcceptance, self, signed.Counterparty(self), &Acceptance{Signed: *signed})
	if err != nil {
		return err
	}
	return s.tp.Send(ctx, msg)
}
