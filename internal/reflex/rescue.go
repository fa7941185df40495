package reflex

import "errors"

// RecoveryFunc handles a matched error. Returning nil marks the invocation
// recovered; returning an error (the original or a replacement) propagates.
type RecoveryFunc func(rc *Context, err error) error

type rescueRule struct {
	matches func(error) bool
	recover RecoveryFunc
}

// RescueFrom registers a recovery for errors matching target via errors.Is.
// Rules are consulted in declaration order, first match wins.
func (c *Class) RescueFrom(target error, fn RecoveryFunc) *Class {
	c.rescues = append(c.rescues, rescueRule{
		matches: func(err error) bool { return errors.Is(err, target) },
		recover: fn,
	})
	return c
}

// RescueMatch registers a recovery guarded by an arbitrary predicate, for
// error kinds that are not sentinel-based (typed errors, panics).
func (c *Class) RescueMatch(match func(error) bool, fn RecoveryFunc) *Class {
	c.rescues = append(c.rescues, rescueRule{matches: match, recover: fn})
	return c
}

// resolveRescue walks the invoked class upward through its ancestors and
// returns the first rule matching err. Rules declared on the class itself
// shadow inherited ones.
func (r *Registry) resolveRescue(class *Class, err error) (RecoveryFunc, bool) {
	for _, c := range r.ancestors(class) {
		for _, rule := range c.rescues {
			if rule.matches(err) {
				return rule.recover, true
			}
		}
	}
	return nil, false
}
