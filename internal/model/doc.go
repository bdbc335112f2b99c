// Package model defines shared data types used across the marketplace.
//
// Conventions:
//   - Amounts: shopspring decimals holding integer wei (18 decimals per whole unit)
//   - Addresses: 0x-prefixed, 20-byte, lowercase hex
//   - Timestamps: time.Time in UTC
//   - IDs: uuid.UUID for events
package model
