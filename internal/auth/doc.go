// Package auth authenticates users and issues the access tokens that
// every protected request must carry.
//
// The pieces, leaf first:
//   - UserDirectory holds identities and Argon2id password hashes
//   - CredentialValidator turns (email, password) into an Identity
//   - TokenService issues and verifies HS256 tokens with {sub,email,role,iat,exp}
//
// Failures are uniform by design of the callers: an unknown email and a
// wrong password are both ErrInvalidCredentials, and the HTTP layer
// collapses ErrInvalidSignature and ErrTokenExpired into one message.
package auth
