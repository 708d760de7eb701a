// Package model defines the payload types carried on the dashboard channels.
//
// The backend formats most numbers for display ("$0.00001234", "+30%",
// "85.0%"). Types here keep those strings as received; the Parse* helpers
// convert them to integer internal units when consumers need arithmetic:
//   - Money: int64 nano-dollars (1e-9 USD), wide enough for meme-token prices
//   - Percentages: int basis points (+30% = 3000)
//   - Timestamps: int64 microseconds since Unix epoch
package model
