package main

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/bitfsorg/btcbridge-go/bridge"
	"github.com/bitfsorg/btcbridge-go/tx"
	"github.com/bitfsorg/btcbridge-go/wallet"
)

// withApp opens the bridge, runs fn and closes everything again.
func withApp(fn func(*app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

// requestArg is the positional JSON request file of a command.
type requestArg struct {
	Args struct {
		Request string `positional-arg-name:"REQUEST" description:"JSON request file, - for standard input"`
	} `positional-args:"yes" required:"yes"`
}

// ---------------------------------------------------------------------------
// Deposits
// ---------------------------------------------------------------------------

func (r *revealRequest) info() (*bridge.RevealInfo, error) {
	info := &bridge.RevealInfo{
		FundingOutputIndex: r.FundingOutputIndex,
		Depositor:          r.Depositor,
		WalletPubKeyHash:   r.WalletPubKeyHash,
		RefundPubKeyHash:   r.RefundPubKeyHash,
		Vault:              r.Vault,
	}
	if len(r.BlindingFactor) != len(info.BlindingFactor) {
		return nil, fmt.Errorf("blinding factor: got %d bytes, want %d", len(r.BlindingFactor), len(info.BlindingFactor))
	}
	if len(r.RefundLocktime) != len(info.RefundLocktime) {
		return nil, fmt.Errorf("refund locktime: got %d bytes, want %d", len(r.RefundLocktime), len(info.RefundLocktime))
	}
	copy(info.BlindingFactor[:], r.BlindingFactor)
	copy(info.RefundLocktime[:], r.RefundLocktime)
	return info, nil
}

type depositAddressCmd struct{ requestArg }

// Execute prints the deposit script and its P2SH and P2WSH addresses for
// the reveal parameters. The funding transaction fields are ignored.
func (c *depositAddressCmd) Execute([]string) error {
	var req revealRequest
	if err := readRequest(c.Args.Request, &req); err != nil {
		return err
	}
	info, err := req.info()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	net, err := cfg.NetParams()
	if err != nil {
		return err
	}

	script, err := tx.DepositScript(tx.DepositScriptParams{
		Depositor:        info.Depositor,
		BlindingFactor:   info.BlindingFactor,
		WalletPubKeyHash: info.WalletPubKeyHash,
		RefundPubKeyHash: info.RefundPubKeyHash,
		RefundLocktime:   info.RefundLocktime,
	})
	if err != nil {
		return err
	}
	p2sh, err := btcutil.NewAddressScriptHash(script, net)
	if err != nil {
		return err
	}
	p2wsh, err := btcutil.NewAddressWitnessScriptHash(chainhash.HashB(script), net)
	if err != nil {
		return err
	}
	return printJSON(struct {
		Script hexutil.Bytes `json:"script"`
		P2SH   string        `json:"p2sh"`
		P2WSH  string        `json:"p2wsh"`
	}{script, p2sh.EncodeAddress(), p2wsh.EncodeAddress()})
}

type revealCmd struct{ requestArg }

func (c *revealCmd) Execute([]string) error {
	var req revealRequest
	if err := readRequest(c.Args.Request, &req); err != nil {
		return err
	}
	info, err := req.info()
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		key, err := a.bridge.RevealDeposit(req.FundingTx, info)
		if err != nil {
			return err
		}
		return printJSON(struct {
			DepositKey hash32 `json:"deposit_key"`
		}{hash32(key)})
	})
}

type sweepCmd struct{ requestArg }

func (c *sweepCmd) Execute([]string) error {
	var req txProofRequest
	if err := readRequest(c.Args.Request, &req); err != nil {
		return err
	}
	return withApp(func(a *app) error {
		res, err := a.bridge.SubmitDepositSweepProof(req.Tx, req.Proof.proof(), req.MainUtxo.utxo(), req.Vault)
		if err != nil {
			return err
		}
		type swept struct {
			DepositKey  hash32         `json:"deposit_key"`
			Depositor   common.Address `json:"depositor"`
			TreasuryFee uint64         `json:"treasury_fee"`
			TxFee       uint64         `json:"tx_fee"`
			Credited    uint64         `json:"credited"`
		}
		out := struct {
			TxHash   txid      `json:"tx_hash"`
			Deposits []swept   `json:"deposits"`
			TotalFee uint64    `json:"total_fee"`
			MainUtxo *utxoJSON `json:"main_utxo"`
		}{TxHash: txid(res.TxHash), TotalFee: res.TotalFee, MainUtxo: newUTXOJSON(res.MainUtxo)}
		for _, d := range res.Deposits {
			out.Deposits = append(out.Deposits, swept{hash32(d.Key), d.Depositor, d.TreasuryFee, d.TxFee, d.Credited})
		}
		return printJSON(out)
	})
}

// ---------------------------------------------------------------------------
// Redemptions
// ---------------------------------------------------------------------------

type requestRedemptionCmd struct{ requestArg }

func (c *requestRedemptionCmd) Execute([]string) error {
	var req redemptionRequestJSON
	if err := readRequest(c.Args.Request, &req); err != nil {
		return err
	}
	return withApp(func(a *app) error {
		script := []byte(req.RedeemerOutputScript)
		if req.RedeemerAddress != "" {
			net, err := a.cfg.NetParams()
			if err != nil {
				return err
			}
			addr, err := btcutil.DecodeAddress(req.RedeemerAddress, net)
			if err != nil {
				return fmt.Errorf("redeemer address: %w", err)
			}
			if script, err = txscript.PayToAddrScript(addr); err != nil {
				return fmt.Errorf("redeemer address: %w", err)
			}
		}
		key, err := a.bridge.RequestRedemption(&bridge.RedemptionRequestParams{
			Redeemer:             req.Redeemer,
			WalletPubKeyHash:     req.WalletPubKeyHash,
			MainUtxo:             req.MainUtxo.utxo(),
			RedeemerOutputScript: script,
			Amount:               req.Amount,
		})
		if err != nil {
			return err
		}
		return printJSON(struct {
			RedemptionKey hash32 `json:"redemption_key"`
		}{hash32(key)})
	})
}

type redeemCmd struct{ requestArg }

func (c *redeemCmd) Execute([]string) error {
	var req txProofRequest
	if err := readRequest(c.Args.Request, &req); err != nil {
		return err
	}
	return withApp(func(a *app) error {
		res, err := a.bridge.SubmitRedemptionProof(req.Tx, req.Proof.proof(), req.MainUtxo.utxo(), req.WalletPubKeyHash)
		if err != nil {
			return err
		}
		keys := func(ks []bridge.RedemptionKey) []hash32 {
			out := make([]hash32, len(ks))
			for i, k := range ks {
				out[i] = hash32(k)
			}
			return out
		}
		return printJSON(struct {
			TxHash           txid      `json:"tx_hash"`
			Fulfilled        []hash32  `json:"fulfilled"`
			TimedOutResolved []hash32  `json:"timed_out_resolved"`
			TreasuryFee      uint64    `json:"treasury_fee"`
			TotalFee         uint64    `json:"total_fee"`
			MainUtxo         *utxoJSON `json:"main_utxo"`
		}{txid(res.TxHash), keys(res.Fulfilled), keys(res.TimedOutResolved), res.TreasuryFee, res.TotalFee, newUTXOJSON(res.MainUtxo)})
	})
}

// redemptionArgs name a redemption by wallet and redeemer script.
type redemptionArgs struct {
	WalletPubKeyHash string `long:"wallet" required:"true" description:"Wallet public key hash (hex)"`
	Script           string `long:"script" required:"true" description:"Redeemer output script (hex)"`
}

func (r *redemptionArgs) parse() (pkh, []byte, error) {
	var w pkh
	if err := w.UnmarshalText([]byte(r.WalletPubKeyHash)); err != nil {
		return w, nil, err
	}
	script, err := hexutil.Decode(r.Script)
	if err != nil {
		return w, nil, fmt.Errorf("script: %w", err)
	}
	return w, script, nil
}

type timeoutRedemptionCmd struct{ redemptionArgs }

func (c *timeoutRedemptionCmd) Execute([]string) error {
	w, script, err := c.parse()
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		return a.bridge.NotifyRedemptionTimeout(w, script)
	})
}

type redemptionQueryCmd struct {
	redemptionArgs
	TimedOut bool `long:"timed-out" description:"Look up the timed out set"`
}

func (c *redemptionQueryCmd) Execute([]string) error {
	w, script, err := c.parse()
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		key := bridge.RedemptionKeyOf(w, script)
		get := a.bridge.PendingRedemption
		if c.TimedOut {
			get = a.bridge.TimedOutRedemption
		}
		r, err := get(key)
		if err != nil {
			return err
		}
		return printJSON(struct {
			RedemptionKey   hash32         `json:"redemption_key"`
			Redeemer        common.Address `json:"redeemer"`
			RequestedAmount uint64         `json:"requested_amount"`
			TreasuryFee     uint64         `json:"treasury_fee"`
			TxMaxFee        uint64         `json:"tx_max_fee"`
			RequestedAt     time.Time      `json:"requested_at"`
		}{hash32(key), r.Redeemer, r.RequestedAmount, r.TreasuryFee, r.TxMaxFee, r.RequestedAt})
	})
}

// ---------------------------------------------------------------------------
// Wallets and moving funds
// ---------------------------------------------------------------------------

// walletArg names a wallet by public key hash.
type walletArg struct {
	WalletPubKeyHash string `long:"wallet" required:"true" description:"Wallet public key hash (hex)"`
}

func (w *walletArg) parse() (pkh, error) {
	var p pkh
	err := p.UnmarshalText([]byte(w.WalletPubKeyHash))
	return p, err
}

type registerWalletCmd struct {
	walletArg
	EcdsaWalletID string `long:"ecdsa-id" required:"true" description:"ECDSA wallet ID (32-byte hex)"`
}

func (c *registerWalletCmd) Execute([]string) error {
	w, err := c.parse()
	if err != nil {
		return err
	}
	var id hash32
	if err := id.UnmarshalText([]byte(c.EcdsaWalletID)); err != nil {
		return fmt.Errorf("ecdsa wallet id: %w", err)
	}
	return withApp(func(a *app) error {
		return a.bridge.RegisterWallet(w, id)
	})
}

type beginMovingFundsCmd struct{ walletArg }

func (c *beginMovingFundsCmd) Execute([]string) error {
	w, err := c.parse()
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		state, err := a.bridge.BeginMovingFunds(w)
		if err != nil {
			return err
		}
		return printJSON(struct {
			State string `json:"state"`
		}{state.String()})
	})
}

type commitMovingFundsCmd struct{ requestArg }

func (c *commitMovingFundsCmd) Execute([]string) error {
	var req commitmentJSON
	if err := readRequest(c.Args.Request, &req); err != nil {
		return err
	}
	targets := make([][20]byte, len(req.TargetWallets))
	for i, t := range req.TargetWallets {
		targets[i] = t
	}
	return withApp(func(a *app) error {
		return a.bridge.SubmitMovingFundsCommitment(&bridge.MovingFundsCommitment{
			WalletPubKeyHash: req.WalletPubKeyHash,
			MainUtxo:         req.MainUtxo.utxo(),
			WalletMembersIDs: req.WalletMembersIDs,
			MemberIndex:      req.MemberIndex,
			Submitter:        req.Submitter,
			TargetWallets:    targets,
		})
	})
}

type moveFundsCmd struct{ requestArg }

func (c *moveFundsCmd) Execute([]string) error {
	var req txProofRequest
	if err := readRequest(c.Args.Request, &req); err != nil {
		return err
	}
	return withApp(func(a *app) error {
		res, err := a.bridge.SubmitMovingFundsProof(req.Tx, req.Proof.proof(), req.MainUtxo.utxo(), req.WalletPubKeyHash)
		if err != nil {
			return err
		}
		type request struct {
			Wallet pkh    `json:"wallet"`
			Index  uint32 `json:"tx_output_index"`
			Value  uint64 `json:"value"`
		}
		out := struct {
			TxHash   txid      `json:"tx_hash"`
			Requests []request `json:"moved_funds_sweep_requests"`
			TotalFee uint64    `json:"total_fee"`
		}{TxHash: txid(res.TxHash), TotalFee: res.TotalFee}
		for _, r := range res.Requests {
			out.Requests = append(out.Requests, request{r.WalletPubKeyHash, r.TxOutputIndex, r.Value})
		}
		return printJSON(out)
	})
}

type movingFundsBelowDustCmd struct{ requestArg }

func (c *movingFundsBelowDustCmd) Execute([]string) error {
	var req struct {
		WalletPubKeyHash pkh       `json:"wallet_pubkey_hash"`
		MainUtxo         *utxoJSON `json:"main_utxo"`
	}
	if err := readRequest(c.Args.Request, &req); err != nil {
		return err
	}
	return withApp(func(a *app) error {
		return a.bridge.NotifyMovingFundsBelowDust(req.WalletPubKeyHash, req.MainUtxo.utxo())
	})
}

type sweepMovedFundsCmd struct{ requestArg }

func (c *sweepMovedFundsCmd) Execute([]string) error {
	var req txProofRequest
	if err := readRequest(c.Args.Request, &req); err != nil {
		return err
	}
	return withApp(func(a *app) error {
		main, err := a.bridge.SubmitMovedFundsSweepProof(req.Tx, req.Proof.proof(), req.MainUtxo.utxo())
		if err != nil {
			return err
		}
		return printJSON(struct {
			MainUtxo *utxoJSON `json:"main_utxo"`
		}{newUTXOJSON(*main)})
	})
}

type closeWalletCmd struct{ walletArg }

func (c *closeWalletCmd) Execute([]string) error {
	w, err := c.parse()
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		return a.bridge.NotifyWalletClosingPeriodElapsed(w)
	})
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// outpointArgs name a transaction output.
type outpointArgs struct {
	TxID  string `long:"txid" required:"true" description:"Transaction ID (display hex)"`
	Index uint32 `long:"index" description:"Output index"`
}

func (o *outpointArgs) hash() (chainhash.Hash, error) {
	var t txid
	err := t.UnmarshalText([]byte(o.TxID))
	return chainhash.Hash(t), err
}

type depositQueryCmd struct{ outpointArgs }

func (c *depositQueryCmd) Execute([]string) error {
	h, err := c.hash()
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		key := bridge.DepositKeyOf(h, c.Index)
		d, err := a.bridge.Deposit(key)
		if err != nil {
			return err
		}
		return printJSON(struct {
			DepositKey  hash32         `json:"deposit_key"`
			Depositor   common.Address `json:"depositor"`
			Amount      uint64         `json:"amount"`
			Wallet      pkh            `json:"wallet_pubkey_hash"`
			Vault       common.Address `json:"vault"`
			TreasuryFee uint64         `json:"treasury_fee"`
			RevealedAt  time.Time      `json:"revealed_at"`
			Swept       bool           `json:"swept"`
			SweptAt     *time.Time     `json:"swept_at,omitempty"`
		}{hash32(key), d.Depositor, d.Amount, d.WalletPubKeyHash, d.Vault, d.TreasuryFee, d.RevealedAt, d.Swept(), optionalTime(d.SweptAt)})
	})
}

type movedFundsSweepQueryCmd struct{ outpointArgs }

func (c *movedFundsSweepQueryCmd) Execute([]string) error {
	h, err := c.hash()
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		r, err := a.bridge.MovedFundsSweep(h, c.Index)
		if err != nil {
			return err
		}
		return printJSON(struct {
			Wallet    pkh       `json:"wallet_pubkey_hash"`
			Value     uint64    `json:"value"`
			CreatedAt time.Time `json:"created_at"`
			State     string    `json:"state"`
		}{r.WalletPubKeyHash, r.Value, r.CreatedAt, r.State.String()})
	})
}

type walletQueryCmd struct{ walletArg }

func (c *walletQueryCmd) Execute([]string) error {
	p, err := c.parse()
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		w, err := a.bridge.Wallet(p)
		if err != nil {
			return err
		}
		return printJSON(walletView(w))
	})
}

type walletJSON struct {
	PubKeyHash                 pkh        `json:"pubkey_hash"`
	EcdsaWalletID              hash32     `json:"ecdsa_wallet_id"`
	State                      string     `json:"state"`
	MainUtxoHash               *hash32    `json:"main_utxo_hash,omitempty"`
	PendingRedemptionsValue    uint64     `json:"pending_redemptions_value"`
	PendingMovedFundsSweeps    uint32     `json:"pending_moved_funds_sweeps"`
	CreatedAt                  *time.Time `json:"created_at,omitempty"`
	MovingFundsRequestedAt     *time.Time `json:"moving_funds_requested_at,omitempty"`
	ClosingStartedAt           *time.Time `json:"closing_started_at,omitempty"`
	MovingFundsTargetsCommited bool       `json:"moving_funds_targets_committed"`
}

func walletView(w *wallet.Wallet) walletJSON {
	v := walletJSON{
		PubKeyHash:                 w.PubKeyHash,
		EcdsaWalletID:              w.EcdsaWalletID,
		State:                      w.State.String(),
		PendingRedemptionsValue:    w.PendingRedemptionsValue,
		PendingMovedFundsSweeps:    w.PendingMovedFundsSweepRequestsCount,
		CreatedAt:                  optionalTime(w.CreatedAt),
		MovingFundsRequestedAt:     optionalTime(w.MovingFundsRequestedAt),
		ClosingStartedAt:           optionalTime(w.ClosingStartedAt),
		MovingFundsTargetsCommited: w.MovingFundsTargetWalletsCommitmentHash != [32]byte{},
	}
	if w.HasMainUtxo() {
		h := hash32(w.MainUtxoHash)
		v.MainUtxoHash = &h
	}
	return v
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type balanceCmd struct {
	Account string `long:"account" required:"true" description:"Account address (hex)"`
}

func (c *balanceCmd) Execute([]string) error {
	if !common.IsHexAddress(c.Account) {
		return fmt.Errorf("invalid account address %q", c.Account)
	}
	account := common.HexToAddress(c.Account)
	return withApp(func(a *app) error {
		bal, err := a.bridge.Balance(account)
		if err != nil {
			return err
		}
		return printJSON(struct {
			Account common.Address `json:"account"`
			Balance uint64         `json:"balance"`
		}{account, bal})
	})
}
