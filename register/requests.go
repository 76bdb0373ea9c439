package register

type Response struct {
	IsWrite bool // was the request a read or write?
	Address uint32
	Value   uint32 // the value that was read or written
}

type ReadCompletion func(rsp Response)

type Read struct {
	Address    uint32
	Completion ReadCompletion
}

type Write struct {
	Address    uint32
	Value      uint32
	Completion ReadCompletion
}
