// Package warden provides the account, session and privilege services behind
// the warden TCP server.
//
// Warden speaks a small HTTP-shaped protocol directly on TCP sockets. Users
// register and log in with a password, log-ins start an in-memory session,
// and a user can request a privilege key that stays active for a fixed
// period and unlocks image downloads.
//
// # Key Components
//
//   - AuthService: register, login, session check and logout
//   - PrivilegeService: time-boxed privilege keys minted as signed tokens
//   - ContentService: privileged image reads from a sandboxed directory
//   - UserRepo: interface for user persistence (JSON document, SQLite, PostgreSQL)
//   - SessionStore: interface for the in-memory session map
//   - ImageStorage: interface for the image directory
//
// # Privilege Keys
//
// A PrivilegeKey is in exactly one of three states, derived from its value,
// expiry and the current time:
//
//   - KeyUngranted: value is the "0" sentinel
//   - KeyActive: granted and not yet expired
//   - KeyExpired: granted and past its expiry
//
// Upgrade refuses with ErrConflict while a key is active.
//
// # Example Usage
//
//	auth, err := warden.NewAuthService(repo, sessions, warden.AuthConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := auth.Register(ctx, "alice", "Secret1!"); err != nil {
//	    log.Fatal(err)
//	}
//	sess, err := auth.Login(ctx, "alice", "Secret1!")
//
// See the server package for the wire protocol and routing, and the jsonstore
// and database packages for user store implementations.
package warden
