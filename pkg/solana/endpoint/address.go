package endpoint

import (
	"crypto/ed25519"

	"github.com/code-payments/endpoint-mock/pkg/solana"
)

// OAppSeed prefixes every OApp registry address.
const OAppSeed = "OApp"

type GetOAppRegistryAddressArgs struct {
	OApp ed25519.PublicKey
}

// GetOAppRegistryAddress returns the registry address and bump for an OApp
// under the program's OAppSeed.
func GetOAppRegistryAddress(args *GetOAppRegistryAddressArgs) (ed25519.PublicKey, uint8, error) {
	return DeriveOAppRegistryAddress(PROGRAM_ID, []byte(OAppSeed), args.OApp)
}

// DeriveOAppRegistryAddress derives the registry address for oapp with an
// explicit program and seed.
func DeriveOAppRegistryAddress(program ed25519.PublicKey, seed []byte, oapp ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		program,
		seed,
		oapp,
	)
}

// OAppRegistrySignerSeeds returns the seeds the program signs with when
// acting on behalf of the registry address.
func OAppRegistrySignerSeeds(seed []byte, oapp ed25519.PublicKey, bump uint8) [][]byte {
	return [][]byte{seed, oapp, {bump}}
}
