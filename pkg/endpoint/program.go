package endpoint

import (
	"crypto/ed25519"

	"github.com/code-payments/endpoint-mock/pkg/runtime"
	"github.com/code-payments/endpoint-mock/pkg/solana"
	"github.com/code-payments/endpoint-mock/pkg/solana/endpoint"
)

// RegisterOAppParams is the payload stored for a registered OApp.
type RegisterOAppParams struct {
	Delegate ed25519.PublicKey
}

// RegisterOAppApplier performs a decoded register_oapp instruction.
//
// The seed is the prefix the registry address is derived under. Errors are
// returned to the runtime unchanged.
type RegisterOAppApplier interface {
	RegisterOApp(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, seed []byte, params *RegisterOAppParams) error
}

// Program is the endpoint program entrypoint. It only decodes instructions,
// leaving validation and state changes to the applier.
type Program struct {
	seed    []byte
	applier RegisterOAppApplier
}

// NewProgram returns the endpoint program using the standard OApp seed.
func NewProgram(applier RegisterOAppApplier) *Program {
	return NewProgramWithSeed([]byte(endpoint.OAppSeed), applier)
}

// NewProgramWithSeed returns the endpoint program deriving registry
// addresses under seed.
func NewProgramWithSeed(seed []byte, applier RegisterOAppApplier) *Program {
	return &Program{
		seed:    append([]byte(nil), seed...),
		applier: applier,
	}
}

// Process implements runtime.Program.Process
func (p *Program) Process(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, data []byte) error {
	if len(data) < len(endpoint.RegisterOAppInstructionDiscriminator) {
		return newAnchorError(endpoint.InstructionMissing)
	}

	if !endpoint.IsRegisterOAppInstruction(data) {
		return newAnchorError(endpoint.InstructionFallbackNotFound)
	}

	var args endpoint.RegisterOAppInstructionArgs
	if err := args.Unmarshal(data); err != nil {
		return newAnchorError(endpoint.InstructionDidNotDeserialize)
	}

	return p.applier.RegisterOApp(ic, accounts, p.seed, &RegisterOAppParams{
		Delegate: args.Delegate,
	})
}

func newAnchorError(code endpoint.AnchorError) error {
	return solana.CustomError(code)
}
