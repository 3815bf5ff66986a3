// Package sim provides the policy-augmented SIR epidemic integrator.
//
// # Reading Guide
//
// Start with these files to understand the model:
//   - config.go: Params, Mode and RunRequest with their validation
//   - derivative.go: the right-hand side for the none, lottery and mandate modes
//   - event.go: the mandate event function and the one-time state transform
//   - simulator.go: Model.Run, the two-phase (pre-event, post-event) driver
//   - trajectory.go, metrics.go: the run result and its summary report
//
// # Architecture
//
// Supporting pieces live in sub-packages that do not import sim/:
//   - sim/ode/: explicit solvers (adaptive Dormand-Prince, fixed-step Euler)
//     with grid sampling, event location and a step observer hook
//   - sim/policy/: the lottery vaccination state and its update cadence
//   - sim/trace/: policy trigger records and their summary
//
// # Policy reentrancy
//
// In lottery mode the derivative mutates the policy state. With the default
// evaluation cadence the state advances on every derivative evaluation the
// solver makes, including sub-stages and rejected attempts, so the vaccination
// rate depends on the solver's step history. The step cadence advances it once
// per accepted step instead. Both are deterministic.
//
// # Concurrency
//
// A run is single-threaded and synchronous. Model holds only immutable
// parameters, so independent runs may execute in parallel goroutines.
package sim
