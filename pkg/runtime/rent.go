package runtime

// accountStorageOverhead is the number of bytes charged for every account on
// top of its data.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L31
const accountStorageOverhead = 128

// Rent determines the minimum balance an account with data must hold.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
}

// DefaultRent matches the parameters of the public clusters.
var DefaultRent = Rent{
	LamportsPerByteYear: defaultLamportsPerByteYear,
	ExemptionThreshold:  defaultRentExemptionThreshold,
}

// MinimumBalance returns the lamports an account with dataLen bytes needs to
// be rent exempt.
func (r Rent) MinimumBalance(dataLen uint64) uint64 {
	bytes := accountStorageOverhead + dataLen
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt returns whether balance is enough to keep dataLen bytes alive.
func (r Rent) IsExempt(balance, dataLen uint64) bool {
	return balance >= r.MinimumBalance(dataLen)
}
