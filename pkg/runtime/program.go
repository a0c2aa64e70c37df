package runtime

// Program is a builtin program the runtime can execute.
//
// Process is handed the accounts of the instruction in order, and mutates
// them in place. Returning an error aborts the whole transaction. Programs
// report their own failures with solana.CustomError, and runtime failures with
// the Err* values of this package.
type Program interface {
	Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error
}

// ProgramFunc adapts a function into a Program.
type ProgramFunc func(ic *InvokeContext, accounts []*AccountInfo, data []byte) error

// Process implements Program.Process
func (f ProgramFunc) Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	return f(ic, accounts, data)
}
