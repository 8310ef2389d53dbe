// Package network drives a hydraulic simulation of a water network
// hour by hour.
//
// A Network owns the pumps and tanks discovered in the topology. Callers
// check the pump collection out with Pumps, write the hourly control values
// into it and check it back in with SetPumps before calling Run. Run opens a
// stepped hydraulic session, pushes each pump's control value at every hour
// boundary, harvests pump energy and tank levels into the series, and always
// closes the session and project before returning. Results returns an
// immutable snapshot of all series.
package network
