// Package pilot turns geometric motion requests (distances, headings,
// arcs) into synchronized setpoint programs for a two motor
// differential drive, and monitors their execution.
//
// The Differential pilot converts physical units to encoder pulses
// using the wheel diameter and track width, writes every motor's
// setpoints before issuing any run command, and hands back a Monitor
// that polls motor state in the background to detect completion or a
// stall. The conventions follow the LeJOS pilot: positive angles turn
// left (counter-clockwise), positive radii put the turn centre on the
// left side.
package pilot
