package detection

import "sync"

// Stub implements Classifier for testing.
// ClassifyFunc decides each result; if nil, every region is non-person with
// zero confidence.
type Stub struct {
	ClassifyFunc func(call int, v FeatureVector) (Result, error)

	mu    sync.Mutex
	calls int
}

// NewSequenceStub returns a Stub that answers with results in order and
// then keeps answering non-person.
func NewSequenceStub(results ...Result) *Stub {
	return &Stub{
		ClassifyFunc: func(call int, _ FeatureVector) (Result, error) {
			if call < len(results) {
				return results[call], nil
			}
			return Result{Label: NonPerson}, nil
		},
	}
}

// Classify implements Classifier.
func (s *Stub) Classify(v FeatureVector) (Result, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	fn := s.ClassifyFunc
	s.mu.Unlock()

	if fn == nil {
		return Result{Label: NonPerson}, nil
	}
	return fn(call, v)
}

// Calls returns how many times Classify ran.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
