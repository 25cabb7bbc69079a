// Package ir provides the value and descriptor types shared by every setuper
// package.
//
// ir imports nothing internal. Key constraints:
//   - Values are a sealed variant (IRValue); there is no float variant
//   - Object iteration for output and hashing uses SortedKeys
//   - Content identities are SHA-256 over RFC 8785 canonical JSON
package ir
