package trust

// Option configures a Database at construction time: a constructor
// returning func() interface{}, type-switched over in New.
type Option func() interface{}

type clockOption struct{ clock Clock }

// WithClock overrides the default system clock used for expiration checks.
// Tests use this to inject github.com/WatchBeam/clock's MockClock.
func WithClock(c Clock) Option {
	return func() interface{} { return clockOption{c} }
}

type maxRootRotationsOption struct{ max int }

// WithMaxRootRotations bounds how far ahead of the current root version a
// single UpdateRoot call may move: a new root whose version exceeds the
// current one by more than max is refused with a NotAuthorizedError.
// UpdateRoot takes one root envelope per call; it does not walk a chain of
// intermediate root versions. Zero means unlimited.
func WithMaxRootRotations(max int) Option {
	return func() interface{} { return maxRootRotationsOption{max} }
}

type checkerOption struct{ checker SignatureChecker }

// WithSignatureChecker overrides the crypto capability used to verify
// signatures. Tests that want to stub out verification entirely (rather
// than generating real keys) use this.
func WithSignatureChecker(c SignatureChecker) Option {
	return func() interface{} { return checkerOption{c} }
}

type interchangeOption struct{ ic Interchange }

// WithInterchange overrides the canonical encoding. The default is
// CanonicalJSON.
func WithInterchange(ic Interchange) Option {
	return func() interface{} { return interchangeOption{ic} }
}
