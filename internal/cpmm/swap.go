package cpmm

import (
	"encoding/binary"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

// Anchor discriminator for the swap_base_input instruction.
var swapBaseInputDiscriminator = [8]byte{143, 190, 90, 218, 196, 30, 51, 222}

// Builder builds swap instructions for one pool.
type Builder struct {
	keys *PoolKeys
}

// NewBuilder creates a swap instruction builder bound to keys.
func NewBuilder(keys *PoolKeys) *Builder {
	return &Builder{keys: keys}
}

// Keys returns the bound pool keys.
func (b *Builder) Keys() *PoolKeys {
	return b.keys
}

// Swap builds a swap_base_input instruction spending amountIn of inputMint
// from owner's associated token accounts.
func (b *Builder) Swap(owner, inputMint, outputMint solanago.PublicKey, amountIn, minAmountOut uint64) (solanago.Instruction, error) {
	k := b.keys

	var inputVault, outputVault, inputProgram, outputProgram solanago.PublicKey
	switch {
	case inputMint.Equals(k.Token0Mint) && outputMint.Equals(k.Token1Mint):
		inputVault, outputVault = k.Token0Vault, k.Token1Vault
		inputProgram, outputProgram = k.Token0Program, k.Token1Program
	case inputMint.Equals(k.Token1Mint) && outputMint.Equals(k.Token0Mint):
		inputVault, outputVault = k.Token1Vault, k.Token0Vault
		inputProgram, outputProgram = k.Token1Program, k.Token0Program
	default:
		return nil, fmt.Errorf("mint pair %s/%s does not match pool %s", inputMint, outputMint, k.Pool)
	}

	inputAccount, _, err := solanago.FindAssociatedTokenAddress(owner, inputMint)
	if err != nil {
		return nil, fmt.Errorf("derive input token account: %w", err)
	}
	outputAccount, _, err := solanago.FindAssociatedTokenAddress(owner, outputMint)
	if err != nil {
		return nil, fmt.Errorf("derive output token account: %w", err)
	}

	data := make([]byte, 8+8+8)
	copy(data[0:8], swapBaseInputDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], amountIn)
	binary.LittleEndian.PutUint64(data[16:24], minAmountOut)

	accounts := solanago.AccountMetaSlice{
		solanago.Meta(owner).SIGNER().WRITE(),
		solanago.Meta(k.Authority),
		solanago.Meta(k.AmmConfig),
		solanago.Meta(k.Pool).WRITE(),
		solanago.Meta(inputAccount).WRITE(),
		solanago.Meta(outputAccount).WRITE(),
		solanago.Meta(inputVault).WRITE(),
		solanago.Meta(outputVault).WRITE(),
		solanago.Meta(inputProgram),
		solanago.Meta(outputProgram),
		solanago.Meta(inputMint),
		solanago.Meta(outputMint),
		solanago.Meta(k.ObservationKey).WRITE(),
	}

	return solanago.NewInstruction(ProgramID, accounts, data), nil
}
