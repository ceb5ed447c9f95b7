// Package motor wraps the motor device classes exposed under the sysfs
// class tree: regulated tacho motors with encoder feedback, plain DC
// motors, and hobby servo motors.
//
// Each wrapper binds one device instance through the device package and
// delegates attribute access to it. Shared behaviour (polarity, state,
// the command sink) lives in small embedded capability structs rather
// than a type hierarchy.
package motor
