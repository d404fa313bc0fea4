package world

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyberinferno/go-l2server/async"
)

// ErrSelfAttack is returned when an attacker targets itself.
var ErrSelfAttack = errors.New("attacker must not be the target")

// AttackHit is the outcome of one resolved attack.
type AttackHit struct {
	Attacker Character
	Target   Character
	Damage   float64
}

// Calculator computes the damage of an attack.
type Calculator interface {
	Calculate(attacker, target Character) float64
}

// PhysicalAttackCalculator is the plain melee formula: 70 * attack / defence,
// never below 1.
type PhysicalAttackCalculator struct{}

func (PhysicalAttackCalculator) Calculate(attacker, target Character) float64 {
	def := float64(target.Defence)
	if def < 1 {
		def = 1
	}

	return max(70*float64(attacker.Attack)/def, 1)
}

// AttackService resolves attacks on the worker pool.
type AttackService struct {
	pool  *async.Pool
	calc  Calculator
	onHit func(AttackHit)
}

// NewAttackService returns a service resolving attacks on pool with calc.
// onHit, if not nil, is called with every resolved hit before the future
// completes.
func NewAttackService(pool *async.Pool, calc Calculator, onHit func(AttackHit)) *AttackService {
	return &AttackService{pool: pool, calc: calc, onHit: onHit}
}

// Attack resolves attacker hitting target asynchronously.
//
// Returns:
//   - A future of the hit; it fails with ErrSelfAttack when both are the
//     same character, or with ctx.Err() if ctx ends before the work starts
func (s *AttackService) Attack(ctx context.Context, attacker, target Character) *async.Future[AttackHit] {
	if attacker.ID == target.ID {
		return async.Failed[AttackHit](fmt.Errorf("%w: %d", ErrSelfAttack, attacker.ID))
	}

	return async.Submit(s.pool, ctx, func(context.Context) (AttackHit, error) {
		hit := AttackHit{
			Attacker: attacker,
			Target:   target,
			Damage:   s.calc.Calculate(attacker, target),
		}
		if s.onHit != nil {
			s.onHit(hit)
		}

		return hit, nil
	})
}
