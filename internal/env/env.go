package env

import "fmt"

type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

func (e Environment) IsDevelopment() bool { return e == Development }
func (e Environment) IsProduction() bool  { return e == Production }

// UnmarshalText lets caarlos0/env reject unknown values at load time.
func (e *Environment) UnmarshalText(text []byte) error {
	switch v := Environment(text); v {
	case Development, Production, Test:
		*e = v
		return nil
	default:
		return fmt.Errorf("unknown environment %q", string(text))
	}
}
