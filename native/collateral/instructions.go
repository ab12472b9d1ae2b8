package collateral

import (
	"math/big"

	"github.com/google/uuid"

	"fylend/crypto"
)

// Instruction is an asset movement the engine decided on during an
// operation. Instructions are returned as data alongside the state mutation
// instead of being executed mid-operation, so they take effect exactly when
// the mutation commits and never when it aborts. Each carries a unique ID so
// downstream transfer channels can deduplicate redelivery.
type Instruction interface {
	InstructionType() string
	InstructionID() string
}

const (
	InstructionTypeTransfer = "transfer"
	InstructionTypeMint     = "mint"
	InstructionTypeBurn     = "burn"
)

// TransferInstruction asks the transfer channel to credit the recipient with
// the named asset.
type TransferInstruction struct {
	ID     string
	Asset  string
	To     crypto.Address
	Amount *big.Int
}

func (t TransferInstruction) InstructionType() string { return InstructionTypeTransfer }
func (t TransferInstruction) InstructionID() string   { return t.ID }

// MintInstruction asks the synthetic token ledger to mint tokens to the
// recipient.
type MintInstruction struct {
	ID        string
	Token     string
	Recipient crypto.Address
	Amount    *big.Int
}

func (m MintInstruction) InstructionType() string { return InstructionTypeMint }
func (m MintInstruction) InstructionID() string   { return m.ID }

// BurnInstruction asks the synthetic token ledger to burn tokens previously
// attached to the operation.
type BurnInstruction struct {
	ID     string
	Token  string
	Amount *big.Int
}

func (b BurnInstruction) InstructionType() string { return InstructionTypeBurn }
func (b BurnInstruction) InstructionID() string   { return b.ID }

func newTransfer(asset string, to crypto.Address, amount *big.Int) TransferInstruction {
	return TransferInstruction{
		ID:     uuid.NewString(),
		Asset:  asset,
		To:     to,
		Amount: new(big.Int).Set(amount),
	}
}

func newMint(token string, recipient crypto.Address, amount *big.Int) MintInstruction {
	return MintInstruction{
		ID:        uuid.NewString(),
		Token:     token,
		Recipient: recipient,
		Amount:    new(big.Int).Set(amount),
	}
}

func newBurn(token string, amount *big.Int) BurnInstruction {
	return BurnInstruction{
		ID:     uuid.NewString(),
		Token:  token,
		Amount: new(big.Int).Set(amount),
	}
}
