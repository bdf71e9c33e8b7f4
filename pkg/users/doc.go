// Package users implements registration, login, password changes and
// tenant-scoped account management.
//
// Register creates a tenant, its first admin user and a trial subscription
// in a single transaction and returns a token pair. Login compares bcrypt
// hashes and answers unknown emails and wrong passwords with the same
// invalid_credentials error.
//
// Changing a password or suspending a user increments the user's credential
// version, which invalidates every refresh token issued before the change.
//
// Store implements auth.CredentialStore for the token service. InsertUser
// takes a postgres.Querier so invitation acceptance can create the user in
// its own transaction.
package users
