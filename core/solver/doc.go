// Package solver defines the boundary to the hydraulic stepping engine.
//
// A Toolkit opens a network topology and returns a Project. A Project
// exposes the link and node inventory of the topology and a stepped
// hydraulic session: OpenHydraulics, InitHydraulics, then alternating
// RunHydraulics/NextHydraulics until NextHydraulics reports no remaining
// step. Link and node properties can be written and read between steps.
// Every failure surfaced by an implementation is wrapped in a SolverError.
package solver
