package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/cuongbtq/genesis-be/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, store *storagetest.Store, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCmd(func(string) (*App, error) {
		return &App{Ledger: store, Catalog: domain.NewCatalog([]domain.Tier{
			{Key: "standard", Name: "Standard", Credits: 50, PriceCents: 2900},
			{Key: "pro", Name: "Pro", Credits: 200, PriceCents: 9900, Validity: 720 * time.Hour},
		})}, nil
	}, "configs/api-service/config.yaml")

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestBalance(t *testing.T) {
	store := storagetest.New(domain.ExpiryPolicyNone)
	store.SetBalance("u1", 120, nil)

	stdout, _, err := executeCLI(t, store, "balance", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "credits: 120")
	assert.Contains(t, stdout, "expires: never")

	stdout, _, err = executeCLI(t, store, "balance", "--user", "u1", "--json")
	require.NoError(t, err)
	var profile domain.Profile
	require.NoError(t, json.Unmarshal([]byte(stdout), &profile))
	assert.Equal(t, 120, profile.Credits)
}

func TestBalanceRequiresUser(t *testing.T) {
	_, _, err := executeCLI(t, storagetest.New(domain.ExpiryPolicyNone), "balance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "user" not set`)
}

func TestRecharge(t *testing.T) {
	store := storagetest.New(domain.ExpiryPolicyNone)
	store.SetBalance("u1", 7, nil)

	stdout, _, err := executeCLI(t, store, "recharge", "--user", "u1", "--tier", "pro")
	require.NoError(t, err)
	assert.Contains(t, stdout, "added 200 credits (pro) to u1")
	assert.Contains(t, stdout, "credits: 207")
	assert.NotContains(t, stdout, "expires: never")
	assert.Equal(t, 207, store.Balance("u1"))

	_, _, err = executeCLI(t, store, "recharge", "--user", "u1", "--tier", "gold")
	assert.ErrorIs(t, err, domain.ErrUnknownTier)
	assert.Equal(t, 207, store.Balance("u1"))
}

func TestRefund(t *testing.T) {
	ctx := t.Context()
	store := storagetest.New(domain.ExpiryPolicyNone)
	store.SetBalance("u1", 50, nil)
	job, err := store.ReserveAndCreateJob(ctx, domain.JobParams{UserID: "u1", Prompt: "x", Model: domain.ModelV2}, 50)
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, store, "refund", "--job", job.ID, "--amount", "50")
	require.NoError(t, err)
	assert.Contains(t, stdout, "credits: 50")

	txs := store.Transactions()
	last := txs[len(txs)-1]
	assert.Equal(t, domain.ReasonManualRefund, last.Reason)
	assert.Equal(t, 50, last.Delta)

	_, _, err = executeCLI(t, store, "refund", "--job", job.ID, "--amount", "0")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = executeCLI(t, store, "refund", "--job", "00000000-0000-0000-0000-000000000000", "--amount", "5")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExpire(t *testing.T) {
	store := storagetest.New(domain.ExpiryPolicyZero)
	past := time.Now().Add(-time.Hour)
	store.SetBalance("u1", 30, &past)
	store.SetBalance("u2", 30, nil)

	stdout, _, err := executeCLI(t, store, "expire")
	require.NoError(t, err)
	assert.Contains(t, stdout, "expired balances: 1")
	assert.Equal(t, 0, store.Balance("u1"))
	assert.Equal(t, 30, store.Balance("u2"))
}

func TestTiers(t *testing.T) {
	stdout, _, err := executeCLI(t, storagetest.New(domain.ExpiryPolicyNone), "tiers")
	require.NoError(t, err)
	assert.Contains(t, stdout, "standard\tStandard\t50 credits\t$29.00\tvalidity none")
	assert.Contains(t, stdout, "pro\tPro\t200 credits\t$99.00\tvalidity 720h0m0s")
}

func TestWireError(t *testing.T) {
	root := NewRootCmd(func(string) (*App, error) {
		return nil, errors.New("failed to load config: open missing.yaml")
	}, "missing.yaml")
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"expire"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
