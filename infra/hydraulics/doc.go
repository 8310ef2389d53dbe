// Package hydraulics is a small stepping engine implementing solver.Toolkit
// over the subset of the EPANET input format used by pump scheduling
// networks.
//
// The engine is a mass balance, not a pressure solver: every open pump moves
// its design flow from its suction side to its delivery side, junction
// demands follow their patterns and tanks integrate the resulting flows.
// A pump is shut by the engine when its suction tank is empty or its
// delivery tank is full. Tank pressure is reported as the water level.
package hydraulics
