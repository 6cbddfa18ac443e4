package llm

import "context"

// Stub is a deterministic Invoker for tests. When Err is set every call
// fails with it; otherwise Output is returned. Calls records the requests
// received.
type Stub struct {
	Output string
	Err    error
	Calls  []Request
}

func (s *Stub) Invoke(_ context.Context, req Request) (string, error) {
	s.Calls = append(s.Calls, req)
	if s.Err != nil {
		return "", s.Err
	}
	return s.Output, nil
}
