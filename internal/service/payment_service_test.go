package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/challenge"
	"github.com/fjod/go_cart/checkout-engine/internal/mandate"
	"github.com/fjod/go_cart/checkout-engine/internal/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notifierMock struct {
	mu   sync.Mutex
	code string
}

func (n *notifierMock) SendCode(_ context.Context, _, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.code = code
	return nil
}

func (n *notifierMock) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.code
}

type settlerMock struct {
	err error
}

func (s settlerMock) Settle(context.Context, domain.PaymentMandate) (*settlement.Result, error) {
	return nil, s.err
}

func (s settlerMock) ConfirmChallenge(context.Context, string, string) (*settlement.Result, error) {
	return nil, s.err
}

func (s settlerMock) PendingMandate(context.Context, string) (domain.PaymentMandate, bool, error) {
	return domain.PaymentMandate{}, false, s.err
}

func (s settlerMock) Abandon(context.Context, string) error { return s.err }

// countingApprove approves every payment and counts how many reached settlement.
func countingApprove(n *atomic.Int32) settlement.Policy {
	return settlement.PolicyFunc(func(context.Context, domain.PaymentMandate) settlement.Decision {
		n.Add(1)
		return settlement.Approve
	})
}

func setupPayments(t *testing.T, challengePolicy challenge.Policy, decision settlement.Policy) (*fixture, *PaymentService, *notifierMock) {
	t.Helper()
	f := setupService(t)
	n := &notifierMock{}
	manager := challenge.NewManager(challenge.NewMemoryCodeStore(), n,
		challenge.WithPolicy(challengePolicy), challenge.WithLogger(discardLogger()))
	processor := settlement.NewProcessor(mandate.NewStructuralValidator(discardLogger()), manager,
		settlement.WithPolicy(decision), settlement.WithLogger(discardLogger()))
	return f, NewPaymentService(f.svc, processor, discardLogger()), n
}

func signedMandate(t *testing.T, p *PaymentService, checkoutID, signature string) domain.PaymentMandate {
	t.Helper()
	contents, err := p.BuildMandate(context.Background(), checkoutID, "")
	require.NoError(t, err)
	return domain.PaymentMandate{Contents: *contents, UserAuthorization: signature}
}

func TestBuildMandate(t *testing.T) {
	f, p, _ := setupPayments(t, challenge.Never, settlement.AlwaysApprove)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "C1", "P1", 2, "")
	require.NoError(t, err)
	_, err = p.BuildMandate(ctx, "C1", "CARD")
	assert.ErrorIs(t, err, domain.ErrCheckoutNotReady)

	_, err = p.BuildMandate(ctx, "missing", "CARD")
	assert.ErrorIs(t, err, domain.ErrCheckoutNotFound)

	readyCheckout(t, f, "C2")
	contents, err := p.BuildMandate(ctx, "C2", "")
	require.NoError(t, err)
	assert.Regexp(t, `^PM-[0-9a-f-]{36}$`, contents.PaymentMandateID)
	assert.Equal(t, "C2", contents.PaymentDetailsID)
	assert.Equal(t, "16.00", contents.PaymentDetailsTotal.Amount.Value.StringFixed(2))
	assert.Equal(t, "USD", contents.PaymentDetailsTotal.Amount.Currency)
	assert.Equal(t, DefaultPaymentMethod, contents.PaymentResponse.MethodName)
	assert.Equal(t, "ann@example.com", contents.PaymentResponse.PayerEmail)
}

func TestPay_SuccessCompletesCheckout(t *testing.T) {
	f, p, _ := setupPayments(t, challenge.Never, settlement.AlwaysApprove)
	ctx := context.Background()
	readyCheckout(t, f, "C1")

	out, err := p.Pay(ctx, signedMandate(t, p, "C1", "valid-signature-xyz"))
	require.NoError(t, err)
	assert.Equal(t, settlement.StateSucceeded, out.State)
	require.NotNil(t, out.Receipt)
	assert.True(t, out.Receipt.IsSuccess())
	require.NotNil(t, out.Order)
	assert.Equal(t, out.Receipt.PaymentID, out.Order.PaymentID)

	c, err := f.svc.Get(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusCompleted, c.Status)
}

func TestPay_SameMandateTwice_OneOrder(t *testing.T) {
	f, p, _ := setupPayments(t, challenge.Never, settlement.AlwaysApprove)
	ctx := context.Background()
	readyCheckout(t, f, "C1")
	m := signedMandate(t, p, "C1", "valid-signature-xyz")

	_, err := p.Pay(ctx, m)
	require.NoError(t, err)
	_, err = p.Pay(ctx, m)
	assert.ErrorIs(t, err, domain.ErrCheckoutNotReady)

	orders, err := f.ledger.ListOrdersBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPay_EmptySignatureIsErrorReceipt(t *testing.T) {
	f, p, n := setupPayments(t, challenge.Always, settlement.AlwaysApprove)
	ctx := context.Background()
	readyCheckout(t, f, "C1")

	out, err := p.Pay(ctx, signedMandate(t, p, "C1", ""))
	require.NoError(t, err)
	assert.Equal(t, settlement.StateRejected, out.State)
	_, isError := out.Receipt.Status.(domain.ReceiptError)
	assert.True(t, isError)
	assert.Nil(t, out.Challenge)
	assert.Nil(t, out.Order)
	assert.Empty(t, n.last(), "no otp may be issued for a rejected mandate")

	c, err := f.svc.Get(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusReadyForPayment, c.Status)
}

func TestPay_DeclinedLeavesCheckoutReady(t *testing.T) {
	f, p, _ := setupPayments(t, challenge.Never, settlement.AlwaysDecline)
	ctx := context.Background()
	readyCheckout(t, f, "C1")

	out, err := p.Pay(ctx, signedMandate(t, p, "C1", "valid-signature-xyz"))
	require.NoError(t, err)
	assert.Equal(t, settlement.StateDeclined, out.State)
	assert.ErrorIs(t, out.Receipt.Err(), domain.ErrSettlementDeclined)
	assert.Nil(t, out.Order)

	c, err := f.svc.Get(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusReadyForPayment, c.Status)
}

func TestPay_ChallengeThenConfirm(t *testing.T) {
	f, p, n := setupPayments(t, challenge.Always, settlement.AlwaysApprove)
	ctx := context.Background()
	readyCheckout(t, f, "C1")
	m := signedMandate(t, p, "C1", "valid-signature-xyz")

	out, err := p.Pay(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, settlement.StateChallenging, out.State)
	require.NotNil(t, out.Challenge)
	assert.Nil(t, out.Receipt)
	assert.Equal(t, "ann@example.com", out.Challenge.Destination)

	code := n.last()
	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}
	_, err = p.ConfirmChallenge(ctx, m.ID(), wrong)
	assert.ErrorIs(t, err, domain.ErrChallengeRejected)

	out, err = p.ConfirmChallenge(ctx, m.ID(), code)
	require.NoError(t, err)
	assert.Equal(t, settlement.StateSucceeded, out.State)
	require.NotNil(t, out.Order)

	_, err = p.ConfirmChallenge(ctx, m.ID(), code)
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)
}

func TestPay_MandateMustMatchCheckout(t *testing.T) {
	f, p, _ := setupPayments(t, challenge.Never, settlement.AlwaysApprove)
	ctx := context.Background()
	readyCheckout(t, f, "C1")
	m := signedMandate(t, p, "C1", "valid-signature-xyz")

	_, err := f.svc.AddItem(ctx, "C1", "P2", 1, "")
	require.NoError(t, err)

	_, err = p.Pay(ctx, m)
	assert.ErrorIs(t, err, domain.ErrMandateMismatch)

	m.Contents.PaymentDetailsID = "unknown"
	_, err = p.Pay(ctx, m)
	assert.ErrorIs(t, err, domain.ErrCheckoutNotFound)
}

func TestConfirmChallenge_CheckoutEditedWhileSuspended(t *testing.T) {
	var settled atomic.Int32
	f, p, n := setupPayments(t, challenge.Always, countingApprove(&settled))
	ctx := context.Background()
	readyCheckout(t, f, "C1")
	m := signedMandate(t, p, "C1", "valid-signature-xyz")

	out, err := p.Pay(ctx, m)
	require.NoError(t, err)
	require.Equal(t, settlement.StateChallenging, out.State)
	code := n.last()

	_, err = f.svc.AddItem(ctx, "C1", "P1", 10, "")
	require.NoError(t, err)

	out, err = p.ConfirmChallenge(ctx, m.ID(), code)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrMandateMismatch)
	assert.Zero(t, settled.Load())

	// the stale mandate is gone, the payer has to sign a new one
	_, err = p.ConfirmChallenge(ctx, m.ID(), code)
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)

	c, err := f.svc.Get(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusReadyForPayment, c.Status)
	orders, err := f.ledger.ListOrdersBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, orders)

	fresh := signedMandate(t, p, "C1", "valid-signature-xyz")
	assert.Equal(t, "71.00", fresh.Amount().Value.StringFixed(2))
	_, err = p.Pay(ctx, fresh)
	require.NoError(t, err)
	out, err = p.ConfirmChallenge(ctx, fresh.ID(), n.last())
	require.NoError(t, err)
	require.NotNil(t, out.Order)
	assert.Equal(t, "71.00", out.Order.Totals.Total.StringFixed(2))
	assert.True(t, out.Receipt.Amount.Value.Equal(out.Order.Totals.Total))
}

func TestConfirmChallenge_CheckoutPaidByAnotherMandate(t *testing.T) {
	var settled atomic.Int32
	f, p, n := setupPayments(t, challenge.Always, countingApprove(&settled))
	ctx := context.Background()
	readyCheckout(t, f, "C1")

	first := signedMandate(t, p, "C1", "valid-signature-xyz")
	_, err := p.Pay(ctx, first)
	require.NoError(t, err)
	firstCode := n.last()

	second := signedMandate(t, p, "C1", "valid-signature-xyz")
	_, err = p.Pay(ctx, second)
	require.NoError(t, err)
	paid, err := p.ConfirmChallenge(ctx, second.ID(), n.last())
	require.NoError(t, err)
	require.NotNil(t, paid.Order)
	require.Equal(t, int32(1), settled.Load())

	out, err := p.ConfirmChallenge(ctx, first.ID(), firstCode)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrCheckoutNotReady)
	assert.Equal(t, int32(1), settled.Load(), "no second payment may settle")

	orders, err := f.ledger.ListOrdersBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, paid.Receipt.PaymentID, orders[0].PaymentID)
}

func TestPay_SettlerFailure(t *testing.T) {
	f := setupService(t)
	boom := errors.New("otp store unavailable")
	p := NewPaymentService(f.svc, settlerMock{err: boom}, discardLogger())
	readyCheckout(t, f, "C1")

	_, err := p.Pay(context.Background(), signedMandate(t, p, "C1", "valid-signature-xyz"))
	assert.ErrorIs(t, err, boom)

	_, err = p.ConfirmChallenge(context.Background(), "PM-1", "123456")
	assert.ErrorIs(t, err, boom)
}
