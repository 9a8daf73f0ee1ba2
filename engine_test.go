package disburse_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/fortressi/disburse"
	"github.com/fortressi/disburse/directory"
	"github.com/fortressi/disburse/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	contract = disburse.AccountID("distrotron.test")
	payer    = disburse.AccountID("payer.test")
)

var defaultGas = 300 * disburse.TGas

func near(s string) decimal.Decimal {
	return disburse.NearToYocto(decimal.RequireFromString(s))
}

type world struct {
	ledger *ledger.Ledger
	host   *ledger.Host
	dir    *directory.Local
	engine *disburse.Engine
	logs   *observer.ObservedLogs
}

func newWorld(t *testing.T, accounts ...disburse.AccountID) *world {
	t.Helper()

	l := ledger.New()
	require.NoError(t, l.CreateAccount(contract, decimal.Zero))
	require.NoError(t, l.CreateAccount(payer, near("100")))
	for _, id := range accounts {
		require.NoError(t, l.CreateAccount(id, decimal.Zero))
	}

	host, err := ledger.NewHost(l, contract)
	require.NoError(t, err)

	core, logs := observer.New(zapcore.InfoLevel)
	dir := directory.NewLocal(directory.NewMemoryStore(), directory.DefaultRecipients...)

	return &world{
		ledger: l,
		host:   host,
		dir:    dir,
		logs:   logs,
		engine: disburse.NewEngine(l,
			disburse.WithLogger(zap.New(core)),
			disburse.WithDirectory(dir),
		),
	}
}

// pay runs fn as one host call from payer with deposit attached.
func (w *world) pay(
	t *testing.T,
	deposit decimal.Decimal,
	gas disburse.Gas,
	fn func(ctx context.Context, exec disburse.ExecContext) (*disburse.Receipt, error),
) (*disburse.Receipt, error) {
	t.Helper()
	var receipt *disburse.Receipt
	err := w.host.Call(context.Background(), payer, deposit, gas, func(ctx context.Context, exec disburse.ExecContext) error {
		var err error
		receipt, err = fn(ctx, exec)
		return err
	})
	return receipt, err
}

func (w *world) payOut(t *testing.T, deposit decimal.Decimal, recipients ...disburse.AccountID) (*disburse.Receipt, error) {
	return w.pay(t, deposit, defaultGas, func(ctx context.Context, exec disburse.ExecContext) (*disburse.Receipt, error) {
		return w.engine.PayOut(ctx, exec, recipients)
	})
}

func (w *world) payFromDirectory(t *testing.T, deposit decimal.Decimal, id disburse.AccountID) (*disburse.Receipt, error) {
	return w.pay(t, deposit, defaultGas, func(ctx context.Context, exec disburse.ExecContext) (*disburse.Receipt, error) {
		return w.engine.PayFromDirectory(ctx, exec, id)
	})
}

func (w *world) assertBalance(t *testing.T, id disburse.AccountID, want decimal.Decimal) {
	t.Helper()
	got, err := w.ledger.Balance(id)
	require.NoError(t, err)
	assert.True(t, got.Equal(want), "%s: got %s, want %s", id, got, want)
}

func TestPayOutSplitsEvenly(t *testing.T) {
	recipients := []disburse.AccountID{"bob.test", "carol.test", "dick.test", "eve.test"}
	w := newWorld(t, recipients...)

	receipt, err := w.payOut(t, near("10"), recipients...)
	require.NoError(t, err)

	for _, id := range recipients {
		w.assertBalance(t, id, near("2.5"))
	}
	w.assertBalance(t, payer, near("90"))
	w.assertBalance(t, contract, decimal.Zero)

	assert.True(t, receipt.Amount.Equal(near("2.5")))
	assert.Equal(t, recipients, receipt.Recipients)
	assert.Nil(t, receipt.Compensation)
	assert.False(t, receipt.Uncompensated)
	assert.Equal(t, 0, receipt.Failures())
	assert.Equal(t, []disburse.Stage{
		disburse.StageValidating,
		disburse.StageBudgeting,
		disburse.StageSplitting,
		disburse.StageDispatching,
		disburse.StageCompensating,
		disburse.StageReporting,
		disburse.StageDone,
	}, receipt.Stages)
	assert.Len(t, receipt.Trace, len(recipients)+2)
	assert.Equal(t, 1, w.logs.FilterMessage("all 4 payments succeeded").Len())
}

func TestPayOutDeduplicates(t *testing.T) {
	w := newWorld(t, "bob.test", "carol.test")

	receipt, err := w.payOut(t, near("1"), "carol.test", "bob.test", "carol.test")
	require.NoError(t, err)

	assert.Equal(t, []disburse.AccountID{"bob.test", "carol.test"}, receipt.Recipients)
	w.assertBalance(t, "bob.test", near("0.5"))
	w.assertBalance(t, "carol.test", near("0.5"))
}

func TestPayOutKeepsRemainder(t *testing.T) {
	w := newWorld(t, "bob.test", "carol.test", "dick.test")

	receipt, err := w.payOut(t, decimal.NewFromInt(10), "bob.test", "carol.test", "dick.test")
	require.NoError(t, err)

	assert.True(t, receipt.Disbursement.Slice.Equal(decimal.NewFromInt(3)))
	assert.True(t, receipt.Disbursement.Remainder.Equal(decimal.NewFromInt(1)))
	w.assertBalance(t, "bob.test", decimal.NewFromInt(3))
	w.assertBalance(t, contract, decimal.NewFromInt(1))
}

func TestPayOutRefundsNonexistentRecipient(t *testing.T) {
	w := newWorld(t, "alice.test", "bob.test")

	receipt, err := w.payOut(t, near("0.3"), "alice.test", "your_mom.test", "bob.test")
	require.NoError(t, err)

	w.assertBalance(t, "alice.test", near("0.1"))
	w.assertBalance(t, "bob.test", near("0.1"))
	w.assertBalance(t, payer, near("99.8"))
	w.assertBalance(t, contract, decimal.Zero)

	require.NotNil(t, receipt.Compensation)
	assert.Equal(t, 1, receipt.Compensation.FailureCount)
	assert.True(t, receipt.Compensation.RefundAmount.Equal(near("0.1")))
	assert.Equal(t, payer, receipt.Compensation.RefundTarget)
	assert.False(t, receipt.Uncompensated)
	assert.True(t, receipt.Amount.Equal(near("0.1")), "report still returns the slice")

	assert.Equal(t, []disburse.SettlementStatus{
		disburse.SettlementSucceeded,
		disburse.SettlementSucceeded,
		disburse.SettlementFailed,
	}, statuses(receipt))
	assert.Equal(t, 1, w.logs.FilterMessage("2/3 payments succeeded").Len())
	assert.Equal(t, 1, w.logs.FilterMessageSnippet("yocto to caller").Len())
}

func TestPayOutRefundsFirstRecipient(t *testing.T) {
	w := newWorld(t, "alice.test", "bob.test", "carol.test")
	w.ledger.FailTransfersTo("alice.test", errors.New("frozen"))

	receipt, err := w.payOut(t, near("3"), "carol.test", "bob.test", "alice.test")
	require.NoError(t, err)

	require.NotNil(t, receipt.Compensation)
	assert.Equal(t, 1, receipt.Compensation.FailureCount)
	assert.Equal(t, disburse.SettlementFailed, receipt.Outcomes[0].Status)
	assert.Equal(t, disburse.AccountID("alice.test"), receipt.Outcomes[0].Recipient)
	w.assertBalance(t, payer, near("98"))
	w.assertBalance(t, contract, decimal.Zero)
}

func TestPayOutUncompensatedRefund(t *testing.T) {
	w := newWorld(t, "alice.test", "bob.test")
	w.ledger.FailTransfersTo("alice.test", errors.New("frozen"))
	w.ledger.FailTransfersTo(payer, errors.New("payer closed"))

	receipt, err := w.payOut(t, near("2"), "alice.test", "bob.test")
	require.NoError(t, err, "an uncompensated failure is not an invocation error")

	assert.True(t, receipt.Uncompensated)
	assert.Nil(t, receipt.Compensation)
	assert.True(t, receipt.Amount.Equal(near("1")))
	assert.Equal(t, disburse.StageDone, receipt.Stages[len(receipt.Stages)-1])
	w.assertBalance(t, contract, near("1"))
	assert.Equal(t, 1, w.logs.FilterMessage("failed transfers were not compensated").Len())
}

func TestPayOutAborts(t *testing.T) {
	tests := []struct {
		name       string
		deposit    decimal.Decimal
		gas        disburse.Gas
		recipients []disburse.AccountID
		want       error
		stage      disburse.Stage
	}{
		{
			name:    "empty recipient list",
			deposit: near("1"),
			gas:     defaultGas,
			want:    disburse.ErrEmptyRecipientList,
			stage:   disburse.StageValidating,
		},
		{
			name:       "no payment attached",
			deposit:    decimal.Zero,
			gas:        defaultGas,
			recipients: []disburse.AccountID{"bob.test"},
			want:       disburse.ErrNoPaymentAttached,
			stage:      disburse.StageValidating,
		},
		{
			name:       "budget exhausted",
			deposit:    near("1"),
			gas:        10 * disburse.TGas,
			recipients: []disburse.AccountID{"bob.test"},
			want:       disburse.ErrBudgetExhausted,
			stage:      disburse.StageBudgeting,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld(t, "bob.test")

			_, err := w.pay(t, tt.deposit, tt.gas, func(ctx context.Context, exec disburse.ExecContext) (*disburse.Receipt, error) {
				return w.engine.PayOut(ctx, exec, tt.recipients)
			})

			assert.ErrorIs(t, err, tt.want)
			assert.True(t, disburse.IsFatal(err))
			var abort *disburse.AbortError
			require.ErrorAs(t, err, &abort)
			assert.Equal(t, tt.stage, abort.Stage)

			w.assertBalance(t, payer, near("100"))
			w.assertBalance(t, "bob.test", decimal.Zero)
			w.assertBalance(t, contract, decimal.Zero)
		})
	}
}

func TestPayFromDirectoryDefaultList(t *testing.T) {
	w := newWorld(t, directory.DefaultRecipients...)

	receipt, err := w.payFromDirectory(t, near("1"), "mb.testnet")
	require.NoError(t, err)

	assert.Equal(t, []disburse.AccountID{"alice.foo", "bob.foo"}, receipt.Recipients)
	w.assertBalance(t, "alice.foo", near("0.5"))
	w.assertBalance(t, "bob.foo", near("0.5"))
	assert.Equal(t, disburse.StageLookingUp, receipt.Stages[1])
}

func TestPayFromDirectoryManyRecipients(t *testing.T) {
	ids := make([]disburse.AccountID, 86)
	for i := range ids {
		ids[i] = disburse.AccountID(fmt.Sprintf("user%02d.test", i))
	}
	w := newWorld(t, ids...)
	require.NoError(t, w.dir.Mock(context.Background(), "mb.testnet", ids))

	receipt, err := w.payFromDirectory(t, near("86"), "mb.testnet")
	require.NoError(t, err)

	assert.Len(t, receipt.Recipients, 86)
	assert.Equal(t, 0, receipt.Failures())
	for _, id := range ids {
		w.assertBalance(t, id, near("1"))
	}
	w.assertBalance(t, payer, near("14"))
}

func TestPayFromDirectoryOverHTTP(t *testing.T) {
	w := newWorld(t, "carol.test", "dick.test")
	require.NoError(t, w.dir.Mock(context.Background(), "mb.testnet", []disburse.AccountID{"dick.test", "carol.test"}))

	srv := httptest.NewServer(directory.NewRouter(&directory.Handler{Directory: w.dir}))
	defer srv.Close()

	engine := disburse.NewEngine(w.ledger, disburse.WithDirectory(directory.NewClient(srv.URL, srv.Client())))
	receipt, err := w.pay(t, near("2"), defaultGas, func(ctx context.Context, exec disburse.ExecContext) (*disburse.Receipt, error) {
		return engine.PayFromDirectory(ctx, exec, "mb.testnet")
	})
	require.NoError(t, err)

	assert.Equal(t, []disburse.AccountID{"carol.test", "dick.test"}, receipt.Recipients)
	w.assertBalance(t, "carol.test", near("1"))
	w.assertBalance(t, "dick.test", near("1"))
}

func TestPayFromDirectoryAborts(t *testing.T) {
	failing := disburse.DirectoryFunc(func(context.Context, disburse.AccountID) ([]disburse.AccountID, error) {
		return nil, errors.New("connection refused")
	})
	empty := disburse.DirectoryFunc(func(context.Context, disburse.AccountID) ([]disburse.AccountID, error) {
		return nil, nil
	})

	tests := []struct {
		name  string
		dir   disburse.Directory
		id    disburse.AccountID
		gas   disburse.Gas
		want  error
		stage disburse.Stage
	}{
		{
			name:  "invalid identifier",
			dir:   empty,
			id:    "i",
			gas:   defaultGas,
			want:  disburse.ErrInvalidDirectoryIdentifier,
			stage: disburse.StageValidating,
		},
		{
			name:  "lookup failed",
			dir:   failing,
			id:    "mb.testnet",
			gas:   defaultGas,
			want:  disburse.ErrDirectoryLookupFailed,
			stage: disburse.StageLookingUp,
		},
		{
			name:  "no recipients",
			dir:   empty,
			id:    "mb.testnet",
			gas:   defaultGas,
			want:  disburse.ErrNoRecipientsFound,
			stage: disburse.StageLookingUp,
		},
		{
			name:  "callback budget exhausted",
			dir:   empty,
			id:    "mb.testnet",
			gas:   15 * disburse.TGas,
			want:  disburse.ErrBudgetExhausted,
			stage: disburse.StageLookingUp,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld(t)
			engine := disburse.NewEngine(w.ledger, disburse.WithDirectory(tt.dir))

			_, err := w.pay(t, near("1"), tt.gas, func(ctx context.Context, exec disburse.ExecContext) (*disburse.Receipt, error) {
				return engine.PayFromDirectory(ctx, exec, tt.id)
			})

			assert.ErrorIs(t, err, tt.want)
			var abort *disburse.AbortError
			require.ErrorAs(t, err, &abort)
			assert.Equal(t, tt.stage, abort.Stage)
			w.assertBalance(t, payer, near("100"))
		})
	}
}

func TestInvoke(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	exec := disburse.ExecContext{CurrentAccount: contract, Signer: payer, Predecessor: payer}
	_, err := w.engine.Invoke(ctx, exec, disburse.RefundUnpaidName, disburse.NewJoinedOutcome(), near("1"))
	assert.ErrorIs(t, err, disburse.ErrPrivateContinuation)

	_, err = w.engine.Invoke(ctx, exec, "withdraw", nil, near("1"))
	assert.ErrorIs(t, err, disburse.ErrUnknownContinuation)

	exec.Predecessor = contract
	res, err := w.engine.Invoke(ctx, exec, disburse.ReportPaymentName, nil, near("2"))
	require.NoError(t, err)
	assert.True(t, res.Value.Equal(near("2")))

	require.NoError(t, w.ledger.Transfer(ctx, payer, contract, near("1")))
	joined := disburse.NewJoinedOutcome(disburse.Failed(errors.New("gone")), disburse.Succeeded(near("1")))
	res, err = w.engine.Invoke(ctx, exec, disburse.RefundUnpaidName, joined, near("1"))
	require.NoError(t, err)
	assert.True(t, res.Pending)
	w.assertBalance(t, payer, near("100"))
}

func TestEngineBudgetOption(t *testing.T) {
	cfg := disburse.DefaultBudgetConfig()
	cfg.Transfer = disburse.TGas

	engine := disburse.NewEngine(ledger.New(), disburse.WithBudget(cfg))
	assert.Equal(t, disburse.TGas, engine.Budget().Transfer)
	assert.ElementsMatch(t,
		[]disburse.ContinuationName{disburse.RefundUnpaidName, disburse.ReportPaymentName},
		engine.Registry().Names(),
	)
}

func statuses(r *disburse.Receipt) []disburse.SettlementStatus {
	out := make([]disburse.SettlementStatus, len(r.Outcomes))
	for i, o := range r.Outcomes {
		out[i] = o.Status
	}
	return out
}
