package policy

// Features are the inputs a policy decides on: prior-day storage and the
// day of the water year. Inflow and forecasts are deliberately not offered.
type Features struct {
	Storage  float64
	WaterDay int
}

// Policy maps a day's features to an operating rule. Implementations must be
// safe for concurrent use; the engine only calls Evaluate.
type Policy interface {
	Evaluate(f Features) Rule
}

// Func adapts a function to the Policy interface.
type Func func(f Features) Rule

func (fn Func) Evaluate(f Features) Rule { return fn(f) }

// Constant always selects the same rule.
type Constant Rule

func (c Constant) Evaluate(Features) Rule { return Rule(c) }

func (c Constant) String() string { return Rule(c).String() }
