// Package database provides connection pool management for TimescaleDB.
//
// The recorder stores every channel update as a time-series row, so a
// single pool suffices. Pool sizes come from config.
package database
