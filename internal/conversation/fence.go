package conversation

// Fence hands out increasing request ids for one endpoint and tells whether a
// completion still belongs to the most recent request.
// The zero value is ready to use; ids start at 1.
type Fence struct {
	latest uint64
}

// Next tags a new outgoing request.
func (f *Fence) Next() uint64 {
	f.latest++
	return f.latest
}

// IsLatest reports whether id is the newest request issued.
func (f *Fence) IsLatest(id uint64) bool {
	return id != 0 && id == f.latest
}

// Latest returns the newest id issued, or 0 if none.
func (f *Fence) Latest() uint64 {
	return f.latest
}
