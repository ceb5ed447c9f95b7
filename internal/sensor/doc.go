// Package sensor wraps the lego-sensor device class. A sensor is
// driven by writing its mode attribute and read through the numbered
// value attributes, or in bulk through the raw bin_data block whose
// size derives from bin_data_format and num_values.
package sensor
