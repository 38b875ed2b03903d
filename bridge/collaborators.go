package bridge

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Relay supplies the difficulty of the current and previous Bitcoin
// difficulty epochs.
type Relay interface {
	CurrentEpochDifficulty() (uint64, error)
	PrevEpochDifficulty() (uint64, error)
}

// VaultRegistry answers whether a vault may receive swept deposits.
type VaultRegistry interface {
	IsVaultTrusted(vault common.Address) bool
}

// WalletRegistry answers signer-group membership queries for ECDSA wallets.
type WalletRegistry interface {
	// IsWalletMember reports whether member sits at memberIndex (1-based) of
	// the wallet's signer group, given the group's member IDs.
	IsWalletMember(ecdsaWalletID [32]byte, walletMembersIDs []uint32, member common.Address, memberIndex int) bool
}

// TrustedVaults is an in-memory VaultRegistry.
type TrustedVaults struct {
	mtx    sync.RWMutex
	vaults map[common.Address]bool
}

// NewTrustedVaults returns a registry trusting the given vaults.
func NewTrustedVaults(vaults ...common.Address) *TrustedVaults {
	tv := &TrustedVaults{vaults: make(map[common.Address]bool, len(vaults))}
	for _, v := range vaults {
		tv.vaults[v] = true
	}
	return tv
}

// SetVaultStatus trusts or untrusts vault.
func (tv *TrustedVaults) SetVaultStatus(vault common.Address, trusted bool) {
	tv.mtx.Lock()
	defer tv.mtx.Unlock()
	if trusted {
		tv.vaults[vault] = true
	} else {
		delete(tv.vaults, vault)
	}
}

// IsVaultTrusted implements VaultRegistry.
func (tv *TrustedVaults) IsVaultTrusted(vault common.Address) bool {
	tv.mtx.RLock()
	defer tv.mtx.RUnlock()
	return tv.vaults[vault]
}

var _ VaultRegistry = (*TrustedVaults)(nil)

// SignerGroups is an in-memory WalletRegistry mapping each ECDSA wallet to
// its ordered signer addresses.
type SignerGroups struct {
	mtx     sync.RWMutex
	members map[[32]byte][]common.Address
}

// NewSignerGroups returns an empty registry.
func NewSignerGroups() *SignerGroups {
	return &SignerGroups{members: make(map[[32]byte][]common.Address)}
}

// SetMembers records the signer group of a wallet.
func (sg *SignerGroups) SetMembers(ecdsaWalletID [32]byte, members []common.Address) {
	sg.mtx.Lock()
	defer sg.mtx.Unlock()
	sg.members[ecdsaWalletID] = append([]common.Address(nil), members...)
}

// IsWalletMember implements WalletRegistry. The member IDs must list one ID
// per signer, and memberIndex must point at member.
func (sg *SignerGroups) IsWalletMember(ecdsaWalletID [32]byte, walletMembersIDs []uint32, member common.Address, memberIndex int) bool {
	sg.mtx.RLock()
	defer sg.mtx.RUnlock()
	group, ok := sg.members[ecdsaWalletID]
	if !ok || len(walletMembersIDs) != len(group) {
		return false
	}
	if memberIndex < 1 || memberIndex > len(group) {
		return false
	}
	return group[memberIndex-1] == member
}

var _ WalletRegistry = (*SignerGroups)(nil)
