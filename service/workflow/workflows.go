package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	spltoken "github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/mintdesk/mintdesk/service/config"
	"github.com/mintdesk/mintdesk/service/events"
	"github.com/mintdesk/mintdesk/service/metrics"
	solanasvc "github.com/mintdesk/mintdesk/service/solana"
	"github.com/mintdesk/mintdesk/service/token"
	"github.com/mintdesk/mintdesk/service/wallet"
)

// OperationKind identifies a transaction workflow for busy tracking, events
// and metrics.
type OperationKind string

const (
	OpCreateMint OperationKind = "create_mint"
	OpMintTo     OperationKind = "mint_to"
	OpTransfer   OperationKind = "transfer"
	OpAirdrop    OperationKind = "airdrop"
)

// Workflow lifecycle states published as events.
const (
	stateBuilt           = "built"
	statePartiallySigned = "partially_signed"
	stateWalletSigned    = "wallet_signed"
	stateSubmitted       = "submitted"
	stateConfirmed       = "confirmed"
	stateFailed          = "failed"
	stateTimedOut        = "timed_out"
)

// Service runs token operations end to end: validate, resolve accounts,
// assemble, sign, submit, confirm. At most one workflow per operation kind is
// in flight at a time; overlapping requests of the same kind are rejected as
// busy rather than queued.
type Service struct {
	rpc       solanasvc.RPCClient
	chain     *solanasvc.Client
	signer    wallet.Signer
	assembler *Assembler
	engine    *Engine
	publisher events.Publisher
	store     SubmissionStore
	logger    *slog.Logger
	metrics   *metrics.Metrics

	historyLimit int

	mu   sync.Mutex
	busy map[OperationKind]bool
}

// NewService wires a workflow service from configuration. publisher and store
// may be nil, which disables event publishing and submission auditing.
func NewService(
	cfg *config.Config,
	rpcClient solanasvc.RPCClient,
	signer wallet.Signer,
	publisher events.Publisher,
	store SubmissionStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*Service, error) {
	level, err := ParseLevel(cfg.ConfirmationLevel)
	if err != nil {
		return nil, err
	}
	return &Service{
		rpc:          rpcClient,
		chain:        solanasvc.NewClient(rpcClient, m, logger),
		signer:       signer,
		assembler:    NewAssembler(rpcClient, m, logger),
		engine:       NewEngine(rpcClient, level, cfg.ConfirmationTimeout, cfg.ConfirmPollInterval, m, logger),
		publisher:    publisher,
		store:        store,
		logger:       logger,
		metrics:      m,
		historyLimit: cfg.HistoryLimit,
		busy:         make(map[OperationKind]bool),
	}, nil
}

// CreateMintResult reports a newly created mint.
type CreateMintResult struct {
	Mint      solana.PublicKey
	Authority solana.PublicKey
	Decimals  uint8
	Signature solana.Signature
	Slot      uint64
}

// CreateMint creates a fungible token mint with the connected wallet as mint
// authority. The mint keypair is generated locally, co-signs the transaction
// and is discarded afterwards; the mint address is the only durable output.
func (s *Service) CreateMint(ctx context.Context, decimals uint8) (*CreateMintResult, error) {
	const op = "create mint"
	if err := s.acquire(OpCreateMint, op); err != nil {
		return nil, err
	}
	defer s.release(OpCreateMint)

	if decimals > token.MaxDecimals {
		return nil, newError(KindValidation, op,
			fmt.Errorf("decimals %d exceeds maximum of %d", decimals, token.MaxDecimals))
	}
	payer, err := s.payer(op)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rent, err := s.rpc.GetMinimumBalanceForRentExemption(ctx, spltoken.MINT_SIZE, rpc.CommitmentConfirmed)
	s.metrics.RecordRPCCall("getMinimumBalanceForRentExemption", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return nil, newError(KindResolutionFailed, op, err)
	}

	mint := solana.NewWallet()
	ixs, err := token.CreateMintInstructions(payer, mint.PublicKey(), payer, decimals, rent)
	if err != nil {
		return nil, newError(KindValidation, op, err)
	}

	out, err := s.runTransaction(ctx, op, OpCreateMint, ixs, payer, mint.PrivateKey)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "mint created",
		"mint", mint.PublicKey().String(),
		"authority", payer.String(),
		"decimals", decimals,
		"signature", out.Signature.String())

	return &CreateMintResult{
		Mint:      mint.PublicKey(),
		Authority: payer,
		Decimals:  decimals,
		Signature: out.Signature,
		Slot:      out.Slot,
	}, nil
}

// MintResult reports minted supply.
type MintResult struct {
	Mint           solana.PublicKey
	Destination    solana.PublicKey
	Amount         uint64
	Decimals       uint8
	CreatedAccount bool
	Signature      solana.Signature
	Slot           uint64
}

// MintTo mints new supply of the given mint into the connected wallet's
// associated token account, creating the account first when absent. amount is
// a decimal string in whole-token units, converted exactly using the mint's
// on-ledger precision.
func (s *Service) MintTo(ctx context.Context, mintAddr, amount string) (*MintResult, error) {
	const op = "mint tokens"
	if err := s.acquire(OpMintTo, op); err != nil {
		return nil, err
	}
	defer s.release(OpMintTo)

	mintPk, err := solana.PublicKeyFromBase58(mintAddr)
	if err != nil {
		return nil, newError(KindValidation, op, fmt.Errorf("invalid mint address %q: %w", mintAddr, err))
	}
	// Reject malformed amounts before touching the network; the exact
	// conversion happens again below with the mint's real precision.
	if _, err := solanasvc.ToBaseUnits(amount, token.MaxDecimals); err != nil {
		return nil, newError(KindValidation, op, err)
	}
	payer, err := s.payer(op)
	if err != nil {
		return nil, err
	}

	mintState, err := s.fetchMint(ctx, op, mintPk)
	if err != nil {
		return nil, err
	}
	if mintState.MintAuthority == nil || !mintState.MintAuthority.Equals(payer) {
		return nil, newError(KindValidation, op,
			fmt.Errorf("connected wallet is not the mint authority of %s", mintPk))
	}

	units, err := solanasvc.ToBaseUnits(amount, mintState.Decimals)
	if err != nil {
		return nil, newError(KindValidation, op, err)
	}

	dest, created, err := s.ensureAccount(ctx, op, OpMintTo, payer, mintPk)
	if err != nil {
		return nil, err
	}

	ix, err := token.MintToInstruction(mintPk, dest, payer, units)
	if err != nil {
		return nil, newError(KindValidation, op, err)
	}
	out, err := s.runTransaction(ctx, op, OpMintTo, []solana.Instruction{ix}, payer)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "supply minted",
		"mint", mintPk.String(),
		"destination", dest.String(),
		"amount", amount,
		"base_units", units,
		"signature", out.Signature.String())

	return &MintResult{
		Mint:           mintPk,
		Destination:    dest,
		Amount:         units,
		Decimals:       mintState.Decimals,
		CreatedAccount: created,
		Signature:      out.Signature,
		Slot:           out.Slot,
	}, nil
}

// TransferResult reports a completed token transfer.
type TransferResult struct {
	Mint           solana.PublicKey
	Source         solana.PublicKey
	Destination    solana.PublicKey
	Amount         uint64
	Decimals       uint8
	CreatedAccount bool
	Signature      solana.Signature
	Slot           uint64
}

// Transfer moves tokens of the given mint from the connected wallet to the
// recipient's associated token account, creating the recipient account first
// when absent. The sender funds the account creation.
func (s *Service) Transfer(ctx context.Context, mintAddr, recipientAddr, amount string) (*TransferResult, error) {
	const op = "transfer tokens"
	if err := s.acquire(OpTransfer, op); err != nil {
		return nil, err
	}
	defer s.release(OpTransfer)

	mintPk, err := solana.PublicKeyFromBase58(mintAddr)
	if err != nil {
		return nil, newError(KindValidation, op, fmt.Errorf("invalid mint address %q: %w", mintAddr, err))
	}
	recipient, err := solana.PublicKeyFromBase58(recipientAddr)
	if err != nil {
		return nil, newError(KindValidation, op, fmt.Errorf("invalid recipient address %q: %w", recipientAddr, err))
	}
	if _, err := solanasvc.ToBaseUnits(amount, token.MaxDecimals); err != nil {
		return nil, newError(KindValidation, op, err)
	}
	payer, err := s.payer(op)
	if err != nil {
		return nil, err
	}
	if recipient.Equals(payer) {
		return nil, newError(KindValidation, op, fmt.Errorf("recipient is the sending wallet"))
	}

	mintState, err := s.fetchMint(ctx, op, mintPk)
	if err != nil {
		return nil, err
	}
	units, err := solanasvc.ToBaseUnits(amount, mintState.Decimals)
	if err != nil {
		return nil, newError(KindValidation, op, err)
	}

	source, err := token.DeriveAssociatedAddress(payer, mintPk)
	if err != nil {
		return nil, newError(KindValidation, op, err)
	}
	haveSource, err := token.AccountExists(ctx, s.rpc, source)
	if err != nil {
		return nil, newError(KindResolutionFailed, op, err)
	}
	if !haveSource {
		return nil, newError(KindValidation, op,
			fmt.Errorf("sending wallet holds no token account for mint %s", mintPk))
	}

	dest, created, err := s.ensureAccount(ctx, op, OpTransfer, recipient, mintPk)
	if err != nil {
		return nil, err
	}

	ix, err := token.TransferInstruction(source, dest, payer, units)
	if err != nil {
		return nil, newError(KindValidation, op, err)
	}
	out, err := s.runTransaction(ctx, op, OpTransfer, []solana.Instruction{ix}, payer)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tokens transferred",
		"mint", mintPk.String(),
		"source", source.String(),
		"destination", dest.String(),
		"amount", amount,
		"base_units", units,
		"signature", out.Signature.String())

	return &TransferResult{
		Mint:           mintPk,
		Source:         source,
		Destination:    dest,
		Amount:         units,
		Decimals:       mintState.Decimals,
		CreatedAccount: created,
		Signature:      out.Signature,
		Slot:           out.Slot,
	}, nil
}

// BalanceResult reports a wallet's native balance.
type BalanceResult struct {
	Address  solana.PublicKey
	Lamports uint64
	SOL      string
}

// Balance reads the native balance of an address, fresh from the ledger.
func (s *Service) Balance(ctx context.Context, address string) (*BalanceResult, error) {
	const op = "fetch balance"
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, newError(KindValidation, op, fmt.Errorf("invalid address %q: %w", address, err))
	}
	lamports, err := s.chain.FetchBalance(ctx, pk)
	if err != nil {
		return nil, newError(KindResolutionFailed, op, err)
	}
	return &BalanceResult{
		Address:  pk,
		Lamports: lamports,
		SOL:      solanasvc.LamportsToSOL(lamports),
	}, nil
}

// TokenBalanceResult reports a wallet's balance for one mint.
type TokenBalanceResult struct {
	Mint     solana.PublicKey
	Owner    solana.PublicKey
	Account  solana.PublicKey
	Exists   bool
	Amount   uint64
	UIAmount string
	Decimals uint8
}

// TokenBalance reads the token balance of (owner, mint) from the owner's
// associated token account. A missing account is a zero balance, not an
// error.
func (s *Service) TokenBalance(ctx context.Context, mintAddr, ownerAddr string) (*TokenBalanceResult, error) {
	const op = "fetch token balance"
	mintPk, err := solana.PublicKeyFromBase58(mintAddr)
	if err != nil {
		return nil, newError(KindValidation, op, fmt.Errorf("invalid mint address %q: %w", mintAddr, err))
	}
	owner, err := solana.PublicKeyFromBase58(ownerAddr)
	if err != nil {
		return nil, newError(KindValidation, op, fmt.Errorf("invalid owner address %q: %w", ownerAddr, err))
	}

	mintState, err := s.fetchMint(ctx, op, mintPk)
	if err != nil {
		return nil, err
	}
	ata, err := token.DeriveAssociatedAddress(owner, mintPk)
	if err != nil {
		return nil, newError(KindValidation, op, err)
	}

	result := &TokenBalanceResult{
		Mint:     mintPk,
		Owner:    owner,
		Account:  ata,
		Decimals: mintState.Decimals,
		UIAmount: solanasvc.FromBaseUnits(0, mintState.Decimals),
	}

	exists, err := token.AccountExists(ctx, s.rpc, ata)
	if err != nil {
		return nil, newError(KindResolutionFailed, op, err)
	}
	if !exists {
		return result, nil
	}

	acct, err := token.FetchAccount(ctx, s.rpc, ata)
	if err != nil {
		return nil, newError(KindResolutionFailed, op, err)
	}
	result.Exists = true
	result.Amount = acct.Amount
	result.UIAmount = solanasvc.FromBaseUnits(acct.Amount, mintState.Decimals)
	return result, nil
}

// History returns recent transactions touching an address, newest first.
// limit <= 0 uses the configured default.
func (s *Service) History(ctx context.Context, address string, limit int) ([]solanasvc.HistoryEntry, error) {
	const op = "fetch history"
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, newError(KindValidation, op, fmt.Errorf("invalid address %q: %w", address, err))
	}
	if limit <= 0 {
		limit = s.historyLimit
	}
	entries, err := s.chain.FetchHistory(ctx, pk, limit)
	if err != nil {
		return nil, newError(KindResolutionFailed, op, err)
	}
	return entries, nil
}

// AirdropResult reports a confirmed devnet airdrop.
type AirdropResult struct {
	Address   solana.PublicKey
	Lamports  uint64
	Signature solana.Signature
}

// Airdrop requests devnet SOL for an address and waits for confirmation.
// sol is a decimal string in SOL. Only useful against devnet endpoints;
// mainnet nodes reject the request.
func (s *Service) Airdrop(ctx context.Context, address, sol string) (*AirdropResult, error) {
	const op = "request airdrop"
	if err := s.acquire(OpAirdrop, op); err != nil {
		return nil, err
	}
	defer s.release(OpAirdrop)

	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, newError(KindValidation, op, fmt.Errorf("invalid address %q: %w", address, err))
	}
	lamports, err := solanasvc.ToBaseUnits(sol, 9)
	if err != nil {
		return nil, newError(KindValidation, op, err)
	}

	start := time.Now()
	sig, err := s.rpc.RequestAirdrop(ctx, pk, lamports, rpc.CommitmentConfirmed)
	s.metrics.RecordRPCCall("requestAirdrop", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return nil, newError(KindSubmissionFailed, op, err)
	}

	res, err := s.engine.Confirm(ctx, sig)
	if err != nil {
		return nil, newError(KindConfirmationTimedOut, op, err)
	}
	switch res.Outcome {
	case OutcomeFailed:
		return nil, newError(KindConfirmationFailed, op, fmt.Errorf("%s", res.Reason))
	case OutcomeTimedOut:
		return nil, newError(KindConfirmationTimedOut, op,
			fmt.Errorf("airdrop %s not confirmed in time", sig))
	}

	s.logger.InfoContext(ctx, "airdrop confirmed",
		"address", pk.String(), "lamports", lamports, "signature", sig.String())
	return &AirdropResult{Address: pk, Lamports: lamports, Signature: sig}, nil
}

// txOutcome is the result of one completed transaction pipeline.
type txOutcome struct {
	Signature solana.Signature
	Slot      uint64
}

// runTransaction drives one transaction through the full pipeline: assemble,
// partial-sign locally held keys, wallet-sign, submit, confirm. Lifecycle
// events are published at each state change. Any failure after submission
// never resubmits; the signature is reported so the caller can inspect the
// ledger.
func (s *Service) runTransaction(
	ctx context.Context,
	op string,
	kind OperationKind,
	instructions []solana.Instruction,
	feePayer solana.PublicKey,
	extraSigners ...solana.PrivateKey,
) (*txOutcome, error) {
	start := time.Now()

	tx, err := s.assembler.Assemble(ctx, instructions, feePayer)
	if err != nil {
		s.metrics.RecordWorkflow(string(kind), "assembly_error", time.Since(start).Seconds())
		return nil, newError(KindSubmissionFailed, op, err)
	}
	s.emit(ctx, kind, stateBuilt, solana.Signature{}, "")

	if len(extraSigners) > 0 {
		if err := PartialSign(tx, extraSigners...); err != nil {
			s.metrics.RecordWorkflow(string(kind), "signing_error", time.Since(start).Seconds())
			return nil, newError(KindSubmissionFailed, op, err)
		}
		s.emit(ctx, kind, statePartiallySigned, solana.Signature{}, "")
	}

	signed, err := s.signer.Sign(ctx, tx)
	if err != nil {
		s.emit(ctx, kind, stateFailed, solana.Signature{}, "signing rejected")
		s.metrics.RecordWorkflow(string(kind), "signing_rejected", time.Since(start).Seconds())
		return nil, newError(KindSigningRejected, op, err)
	}
	s.emit(ctx, kind, stateWalletSigned, solana.Signature{}, "")

	sig, err := s.engine.Submit(ctx, signed)
	if err != nil {
		s.emit(ctx, kind, stateFailed, solana.Signature{}, "submission failed")
		s.metrics.RecordWorkflow(string(kind), "submission_failed", time.Since(start).Seconds())
		return nil, newError(KindSubmissionFailed, op, err)
	}
	s.emit(ctx, kind, stateSubmitted, sig, "")
	s.recordSubmission(ctx, sig, kind, feePayer)

	res, err := s.engine.Confirm(ctx, sig)
	if err != nil {
		s.emit(ctx, kind, stateTimedOut, sig, err.Error())
		s.metrics.RecordWorkflow(string(kind), "timed_out", time.Since(start).Seconds())
		return nil, newError(KindConfirmationTimedOut, op, err)
	}

	switch res.Outcome {
	case OutcomeConfirmed:
		s.emit(ctx, kind, stateConfirmed, sig, "")
		s.recordOutcome(ctx, sig, res.Outcome.String(), "")
		s.metrics.RecordWorkflow(string(kind), "confirmed", time.Since(start).Seconds())
		return &txOutcome{Signature: sig, Slot: res.Slot}, nil
	case OutcomeFailed:
		s.emit(ctx, kind, stateFailed, sig, res.Reason)
		s.recordOutcome(ctx, sig, res.Outcome.String(), res.Reason)
		s.metrics.RecordWorkflow(string(kind), "failed", time.Since(start).Seconds())
		return nil, newError(KindConfirmationFailed, op,
			fmt.Errorf("transaction %s failed: %s", sig, res.Reason))
	default:
		s.emit(ctx, kind, stateTimedOut, sig, "")
		s.recordOutcome(ctx, sig, res.Outcome.String(), "")
		s.metrics.RecordWorkflow(string(kind), "timed_out", time.Since(start).Seconds())
		return nil, newError(KindConfirmationTimedOut, op,
			fmt.Errorf("transaction %s not confirmed in time", sig))
	}
}

// ensureAccount resolves the associated token account for (owner, mint),
// creating it with its own confirmed transaction when absent. After a
// confirmed creation the account is re-checked; still absent is the
// inconsistent case, reported distinctly from transient failures.
func (s *Service) ensureAccount(
	ctx context.Context,
	op string,
	kind OperationKind,
	owner solana.PublicKey,
	mint solana.PublicKey,
) (solana.PublicKey, bool, error) {
	ata, err := token.DeriveAssociatedAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, false, newError(KindValidation, op, err)
	}

	exists, err := token.AccountExists(ctx, s.rpc, ata)
	if err != nil {
		return solana.PublicKey{}, false, newError(KindResolutionFailed, op, err)
	}
	if exists {
		return ata, false, nil
	}

	payer := s.signer.PublicKey()
	s.logger.InfoContext(ctx, "creating token account",
		"account", ata.String(), "owner", owner.String(), "mint", mint.String())

	ix, err := token.CreateAssociatedAccountInstruction(payer, owner, mint)
	if err != nil {
		return solana.PublicKey{}, false, newError(KindValidation, op, err)
	}
	if _, err := s.runTransaction(ctx, op, kind, []solana.Instruction{ix}, payer); err != nil {
		// Pre-classified pipeline failures keep their kind; anything
		// else is a resolution failure.
		return solana.PublicKey{}, false, newError(KindResolutionFailed, op, err)
	}

	exists, err = token.AccountExists(ctx, s.rpc, ata)
	if err != nil {
		return solana.PublicKey{}, false, newError(KindResolutionFailed, op, err)
	}
	if !exists {
		return solana.PublicKey{}, false, newError(KindResolutionInconsistent, op,
			fmt.Errorf("account %s absent after confirmed creation", ata))
	}
	return ata, true, nil
}

// fetchMint reads a mint's on-ledger state, classifying absence as a
// validation failure and transport problems as resolution failures.
func (s *Service) fetchMint(ctx context.Context, op string, mint solana.PublicKey) (*spltoken.Mint, error) {
	m, err := token.FetchMint(ctx, s.rpc, mint)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, newError(KindValidation, op, fmt.Errorf("mint %s does not exist", mint))
		}
		return nil, newError(KindResolutionFailed, op, err)
	}
	return m, nil
}

// payer returns the connected wallet's address, rejecting operations that
// need a signer when none is available.
func (s *Service) payer(op string) (solana.PublicKey, error) {
	if s.signer == nil {
		return solana.PublicKey{}, newError(KindValidation, op,
			fmt.Errorf("no signer configured"))
	}
	pk := s.signer.PublicKey()
	if pk.IsZero() {
		return solana.PublicKey{}, newError(KindValidation, op, wallet.ErrNotConnected)
	}
	return pk, nil
}

func (s *Service) acquire(kind OperationKind, op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[kind] {
		return newError(KindBusy, op,
			fmt.Errorf("a %s operation is already in progress", kind))
	}
	s.busy[kind] = true
	return nil
}

func (s *Service) release(kind OperationKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, kind)
}

func (s *Service) emit(ctx context.Context, kind OperationKind, state string, sig solana.Signature, reason string) {
	if s.publisher == nil {
		return
	}
	event := &events.WorkflowEvent{
		Kind:        string(kind),
		State:       state,
		Reason:      reason,
		PublishedAt: time.Now().UTC(),
	}
	if !sig.IsZero() {
		event.Signature = sig.String()
	}
	if err := s.publisher.PublishWorkflowEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish workflow event",
			"kind", kind, "state", state, "error", err)
		s.metrics.RecordEventPublished("error")
		return
	}
	s.metrics.RecordEventPublished("success")
}

func (s *Service) recordSubmission(ctx context.Context, sig solana.Signature, kind OperationKind, payer solana.PublicKey) {
	if s.store == nil {
		return
	}
	rec := &SubmissionRecord{
		Signature:   sig.String(),
		Kind:        string(kind),
		Payer:       payer.String(),
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.store.RecordSubmission(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "failed to record submission",
			"signature", rec.Signature, "error", err)
	}
}

func (s *Service) recordOutcome(ctx context.Context, sig solana.Signature, outcome, reason string) {
	if s.store == nil {
		return
	}
	if err := s.store.UpdateOutcome(ctx, sig.String(), outcome, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to record outcome",
			"signature", sig.String(), "outcome", outcome, "error", err)
	}
}
