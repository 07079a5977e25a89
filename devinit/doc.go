// Package devinit performs the device bring-up and reset handshake that
// sits outside the core TX engine: choosing the bus block size and issuing
// a cold reset before the real engine is handed to the bus driver. No warm
// reset is issued.
package devinit
