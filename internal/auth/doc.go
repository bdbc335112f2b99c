// Package auth signs and verifies marketplace API requests.
//
// A caller signs timestamp_ms + METHOD + path with RSA-PSS (SHA-256) and sends
// the result in three headers:
//
//	MARKET-ACCESS-ADDRESS    caller address (0x...)
//	MARKET-ACCESS-TIMESTAMP  unix milliseconds
//	MARKET-ACCESS-SIGNATURE  base64 signature
//
// The server holds one public key per registered address.
package auth
