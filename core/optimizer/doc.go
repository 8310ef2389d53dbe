// Package optimizer searches pump schedules that minimize the energy spent
// per unit of water stored at the end of the day.
//
// A training run repeats trials: reset the controller, propose a schedule,
// simulate it and score the results. The best scoring schedule is kept and
// returned by Control. Proposals come from a pluggable Proposer; the default
// draws every hourly status from a fair coin.
package optimizer
